package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/spf13/cobra"

	"pdfrenamer/internal/extract"
	"pdfrenamer/internal/service/ai"
	"pdfrenamer/internal/service/renamer"
)

var proposeCmd = &cobra.Command{
	Use:   "propose [files...]",
	Short: "Print proposed names for local PDFs without renaming them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		loader := ai.NewLoader(cfg)
		titles := ai.NewTitleGenerator(titleOptions(cfg), nil)
		p := &extract.Parser{}

		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			name, err := proposeFile(ctx, p, loader, titles, path)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(out, "%s -> %s\n", filepath.Base(path), name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be named", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(proposeCmd)
}

func proposeFile(ctx context.Context, p parser.Parser, loader *ai.Loader, titles *ai.TitleGenerator, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !renamer.IsPDF(data) {
		return "", renamer.ErrNotPDF
	}
	docs, err := p.Parse(ctx, bytes.NewReader(data), parser.WithURI(path))
	if err != nil {
		return "", err
	}
	chatModel, err := loader.Load(ctx)
	if err != nil {
		return "", err
	}
	titles.SetIdentity(loader.Identity())
	res := titles.Generate(ctx, chatModel, docs[0].Content)
	if !res.OK() {
		return "", res.Err
	}
	name := renamer.FileName(res.Title)
	if name == "" {
		return "", ai.ErrNoTitle
	}
	return name, nil
}
