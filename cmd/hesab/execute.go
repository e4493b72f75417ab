package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/hesab/pkg/log"
	"github.com/dukex/hesab/pkg/models"
	cli "github.com/urfave/cli/v3"
)

var errRunFailed = errors.New("workflow run failed")

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List the registered workflows and their steps",
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("cli")

			a, err := newApp(ctx, command, logger)
			if err != nil {
				return err
			}
			defer a.close(ctx, logger)

			registry := a.engine.Registry()

			for _, name := range registry.Names() {
				def, _ := registry.Definition(name)

				fmt.Printf("%s\t%s\n", def.Name, def.Description)

				for _, step := range def.Steps {
					fmt.Printf("  - %s%s\n", step.Name, stepFlags(step))
				}
			}

			return nil
		},
	}
}

func stepFlags(step models.StepDefinition) string {
	var flags []string

	if !step.Required {
		flags = append(flags, "optional")
	}

	if step.RequiresConfirmation {
		flags = append(flags, "confirmation")
	}

	if len(step.Dependencies) > 0 {
		flags = append(flags, "after "+strings.Join(step.Dependencies, ","))
	}

	if len(flags) == 0 {
		return ""
	}

	return " (" + strings.Join(flags, "; ") + ")"
}

func ExecuteCommand() *cli.Command {
	return &cli.Command{
		Name:    "execute",
		Aliases: []string{"exec"},
		Usage:   "Run one workflow and print its result as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflow",
				Aliases:  []string{"w"},
				Usage:    "Workflow name, see the list command",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Path to a JSON file with the workflow input",
			},
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "ID of the user running the workflow",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "phone",
				Usage: "Phone number for notifications",
			},
			&cli.BoolFlag{
				Name:  "confirmed",
				Usage: "Set confirmed=true in the input to pass confirmation steps",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("cli")

			input, err := readInput(command.String("input"))
			if err != nil {
				return err
			}

			if command.Bool("confirmed") {
				input["confirmed"] = true
			}

			a, err := newApp(ctx, command, logger)
			if err != nil {
				return err
			}
			defer a.close(ctx, logger)

			caller := models.Identity{UserID: command.String("user"), PhoneNumber: command.String("phone")}

			result, err := a.engine.Execute(ctx, command.String("workflow"), input, caller)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")

			if err := encoder.Encode(result); err != nil {
				return err
			}

			if result.Status == models.WorkflowStatusFailed {
				return fmt.Errorf("%w: %s", errRunFailed, result.FirstError())
			}

			return nil
		},
	}
}

func readInput(path string) (map[string]any, error) {
	input := make(map[string]any)
	if path == "" {
		return input, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	if err := decoder.Decode(&input); err != nil {
		return nil, fmt.Errorf("invalid input JSON: %w", err)
	}

	return input, nil
}
