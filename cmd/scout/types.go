package main

import (
	"fmt"

	"github.com/quillworks/scout/internal/bundle"
	"github.com/spf13/cobra"
)

func typesCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported research types",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := bundle.DefaultRegistry()
			for _, name := range registry.List() {
				b, _ := registry.Get(name)
				domains := "single domain"
				if ds := b.Domains(); len(ds) > 0 {
					domains = fmt.Sprintf("%d domains", len(ds))
				}
				fmt.Printf("%-12s %s (%s)\n", name, b.DisplayName(), domains)
			}
			return nil
		},
	}
}
