// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/bureau-foundation/qtstream/cmd/qtstream/cli"
	"github.com/bureau-foundation/qtstream/lib/export"
)

type typesParams struct {
	Config string `flag:"config" desc:"configuration file (default: $QTSTREAM_CONFIG)"`
	Format string `flag:"format,f" desc:"output format: text, json, or yaml" default:"text"`
}

func typesCommand(env *Environment) *cli.Command {
	var params typesParams

	return &cli.Command{
		Name:    "types",
		Summary: "List the user types and message shape from the configuration",
		Description: `Load the configuration, check that every user type resolves, and
print the registry: one line per type with its wire layout, preceded by
the message shape.`,
		Usage: "qtstream types [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("types takes no positional arguments, got %q", args[0])
			}
			s, err := (&sessionParams{Config: params.Config}).open(env, logger)
			if err != nil {
				return err
			}
			listing, err := describeTypes(s)
			if err != nil {
				return err
			}
			switch strings.ToLower(params.Format) {
			case "text":
				return writeTypesText(env.Stdout, listing)
			case "json":
				return export.WriteJSON(env.Stdout, listing)
			case "yaml":
				return export.WriteYAML(env.Stdout, listing)
			}
			return fmt.Errorf("unknown output format %q (want text, json, or yaml)", params.Format)
		},
	}
}

type typeListing struct {
	Shape string            `json:"shape" yaml:"shape"`
	Types []typeDescription `json:"types" yaml:"types"`
}

type typeDescription struct {
	Name   string             `json:"name" yaml:"name"`
	Alias  string             `json:"alias,omitempty" yaml:"alias,omitempty"`
	Fields []fieldDescription `json:"fields,omitempty" yaml:"fields,omitempty"`
}

type fieldDescription struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

func describeTypes(s *session) (typeListing, error) {
	listing := typeListing{Shape: s.shape.String(), Types: []typeDescription{}}
	for _, name := range s.registry.Names() {
		definition, err := s.registry.Lookup(name)
		if err != nil {
			return typeListing{}, err
		}
		description := typeDescription{Name: name}
		if !definition.Composite() {
			description.Alias = definition.Base().String()
		}
		for _, field := range definition.FieldList() {
			fieldType := field.Type.String()
			if field.UserType != "" {
				fieldType = "user:" + field.UserType
			}
			description.Fields = append(description.Fields, fieldDescription{Name: field.Name, Type: fieldType})
		}
		listing.Types = append(listing.Types, description)
	}
	return listing, nil
}

func writeTypesText(w io.Writer, listing typeListing) error {
	fmt.Fprintf(w, "shape: %s\n", listing.Shape)
	if len(listing.Types) == 0 {
		_, err := fmt.Fprintln(w, "no user types")
		return err
	}
	table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	for _, description := range listing.Types {
		if description.Alias != "" {
			fmt.Fprintf(table, "%s\t%s\n", description.Name, description.Alias)
			continue
		}
		parts := make([]string, len(description.Fields))
		for index, field := range description.Fields {
			parts[index] = field.Name + ": " + field.Type
		}
		fmt.Fprintf(table, "%s\t{%s}\n", description.Name, strings.Join(parts, ", "))
	}
	return table.Flush()
}
