package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/certprep/certprep-backend/internal/model"
	"github.com/certprep/certprep-backend/internal/repository"
	"github.com/certprep/certprep-backend/internal/service"
	"github.com/certprep/certprep-backend/internal/validator"
)

func newCreateUserCmd() *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a candidate account",
		Long:  "Creates an account. Missing values are prompted for; the password is always read without echo.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "=== Create New User ===")

			var err error
			if name == "" {
				if name, err = prompt(reader, out, "Enter Name: "); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = prompt(reader, out, "Enter Email: "); err != nil {
					return err
				}
			}
			password, err := readPassword(reader, out)
			if err != nil {
				return err
			}

			validator.Setup()
			req := model.RegisterRequest{Email: strings.TrimSpace(email), Name: strings.TrimSpace(name), Password: password}
			if fields := validator.Validate(&req); fields != nil {
				return fieldError(fields)
			}

			ctx := cmd.Context()
			cfg, pool, _, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			auth := service.NewAuthService(cfg, repository.NewUserRepository(pool))
			user, err := auth.CreateUser(ctx, req.Email, req.Name, req.Password)
			if err != nil {
				if errors.Is(err, service.ErrEmailTaken) {
					return fmt.Errorf("an account with email %s already exists", req.Email)
				}
				return err
			}

			fmt.Fprintf(out, "\nSuccess! User '%s' (%s) created with ID: %d\n", user.Name, user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func prompt(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal and falls back to a plain
// line when stdin is piped.
func readPassword(reader *bufio.Reader, out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(reader, out, "Enter Password: ")
	}

	fmt.Fprint(out, "Enter Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func fieldError(fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fields[k]))
	}
	return fmt.Errorf("invalid input (%s)", strings.Join(parts, "; "))
}
