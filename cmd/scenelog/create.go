package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/raleighpd/scenelog/internal/config"
	"github.com/raleighpd/scenelog/internal/lifecycle"
	"github.com/raleighpd/scenelog/pkg/domain"
)

const passwordEnv = "SCENELOG_PASSWORD"

const phoneHint = "open this on your phone after logging in"

type createFlags struct {
	email         string
	title         string
	caseNumber    string
	perimeter     string
	perimeterFile string
	exports       []string
}

// createRequest is one headless run: login, create, then one link per kind.
type createRequest struct {
	email      string
	password   string
	title      string
	caseNumber string
	perimeter  domain.Perimeter
	exports    []domain.ExportKind
}

func newCreateCmd(root *rootOptions) *cobra.Command {
	f := &createFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Log in, record a scene and print its export links",
		Long: `create runs the whole flow without the TUI: it signs in, records one scene
and prints an export link per requested format.

The password is read from SCENELOG_PASSWORD, or prompted for when unset.
Without --perimeter or --perimeter-file a small downtown Raleigh square is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.apiURL)
			if err != nil {
				return err
			}
			req, err := f.request(cfg, os.ReadFile, promptPassword)
			if err != nil {
				return err
			}
			log, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog() //nolint:errcheck

			return runCreate(cmd.Context(), cmd.OutOrStdout(), newMachine(cfg, log), req)
		},
	}
	cmd.Flags().StringVar(&f.email, "email", "", "Login email (default: SCENELOG_DEFAULT_EMAIL)")
	cmd.Flags().StringVar(&f.title, "title", "", "Scene title")
	cmd.Flags().StringVar(&f.caseNumber, "case", "", "Case number")
	cmd.Flags().StringVar(&f.perimeter, "perimeter", "", `Perimeter as "lon,lat lon,lat ..." with the first point repeated last`)
	cmd.Flags().StringVar(&f.perimeterFile, "perimeter-file", "", "Read the perimeter from a file (same format, or a GeoJSON Polygon)")
	cmd.Flags().StringSliceVar(&f.exports, "export", []string{"csv", "pdf"}, "Export formats to link")
	_ = cmd.MarkFlagRequired("title")
	cmd.MarkFlagsMutuallyExclusive("perimeter", "perimeter-file")
	return cmd
}

// request resolves flags, files and the password into a createRequest.
func (f *createFlags) request(cfg *config.Config, readFile func(string) ([]byte, error), prompt func(email string) (string, error)) (createRequest, error) {
	req := createRequest{
		email:      strings.TrimSpace(f.email),
		title:      f.title,
		caseNumber: f.caseNumber,
	}
	if req.email == "" {
		req.email = cfg.DefaultEmail
	}
	if req.email == "" {
		return createRequest{}, errors.New("--email is required when SCENELOG_DEFAULT_EMAIL is not set")
	}

	switch {
	case f.perimeterFile != "":
		data, err := readFile(f.perimeterFile)
		if err != nil {
			return createRequest{}, fmt.Errorf("read perimeter file: %w", err)
		}
		p, err := decodePerimeter(data)
		if err != nil {
			return createRequest{}, fmt.Errorf("perimeter file %s: %w", f.perimeterFile, err)
		}
		req.perimeter = p
	case f.perimeter != "":
		p, err := domain.ParsePerimeter(f.perimeter)
		if err != nil {
			return createRequest{}, err
		}
		req.perimeter = p
	default:
		req.perimeter = domain.DefaultPerimeter()
	}

	for _, s := range f.exports {
		kind, err := domain.ParseExportKind(strings.TrimSpace(s))
		if err != nil {
			return createRequest{}, err
		}
		req.exports = append(req.exports, kind)
	}

	req.password = os.Getenv(passwordEnv)
	if req.password == "" {
		pw, err := prompt(req.email)
		if err != nil {
			return createRequest{}, fmt.Errorf("read password: %w", err)
		}
		req.password = pw
	}
	return req, nil
}

// decodePerimeter accepts a GeoJSON Polygon or the compact pair list.
func decodePerimeter(data []byte) (domain.Perimeter, error) {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var p domain.Perimeter
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return domain.ParsePerimeter(text)
}

func promptPassword(email string) (string, error) {
	var pw string
	err := huh.NewInput().
		Title("Password").
		Description(email).
		EchoMode(huh.EchoModePassword).
		Value(&pw).
		Run()
	return pw, err
}

// runCreate drives m through login, scene creation and the requested exports,
// printing each link to w. The session is dropped before returning.
func runCreate(ctx context.Context, w io.Writer, m *lifecycle.Machine, req createRequest) error {
	defer m.Logout()

	if err := m.SubmitLogin(ctx, req.email, req.password); err != nil {
		return err
	}
	sess, _ := m.Session()
	fmt.Fprintf(w, "Signed in as %s\n", sess.Email)

	scene, err := m.SubmitCreateScene(ctx, req.title, req.caseNumber, req.perimeter)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Scene:        %s\n", scene.ID)
	fmt.Fprintf(w, "Title:        %s\n", scene.Title)
	if scene.CaseNumber != "" {
		fmt.Fprintf(w, "Case:         %s\n", scene.CaseNumber)
	}

	for _, kind := range req.exports {
		link, err := m.RequestExport(ctx, kind)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-13s %s\n", strings.ToUpper(string(kind))+":", link.URL)
	}
	if len(req.exports) > 0 {
		fmt.Fprintln(w, phoneHint)
	}
	return nil
}
