package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandevgo/loanpilot/pkg/log"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index <directory>",
	Short: "Index a knowledge base directory",
	Long:  `Chunks and embeds every .md and .txt file under the directory into the vector store. Re-indexing a file overwrites its previous chunks.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		logger := log.FromCtx(ctx)

		deps, err := initCore(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize core: %w", err)
		}
		defer deps.db.Close()

		root := args[0]
		files, indexed := 0, 0

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isKnowledgeFile(path) {
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}

			n, err := deps.index.AddDocument(ctx, rel, string(content))
			if err != nil {
				return fmt.Errorf("failed to index %s: %w", rel, err)
			}

			files++
			indexed += n
			return nil
		})
		if err != nil {
			return err
		}

		total, err := deps.index.Count(ctx)
		if err != nil {
			return err
		}

		logger.Info().
			Int("files", files).
			Int("chunks", indexed).
			Int("total_chunks", total).
			Msg("indexing finished")
		return nil
	},
}

func isKnowledgeFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return true
	default:
		return false
	}
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
