package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/anoixa/catdex/config"
	"github.com/anoixa/catdex/database"
	"github.com/anoixa/catdex/database/repo/cats"
	"github.com/anoixa/catdex/internal/backup"
	"github.com/anoixa/catdex/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// restoreCmd 还原命令
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore cats and images from a backup archive",
	Long: `Restore cats and images from a tar.gz archive created by the backup command.
Cats whose id already exists and images with an existing name are left untouched.

Example:
  # Restore from a local archive
  catdex restore --input ./backups/backup_20260214_222320.tar.gz

  # Fetch the archive from backup_target first
  catdex restore --input backup_20260214_222320.tar.gz --remote

  # Preview only
  catdex restore --input ./backup.tar.gz --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		fromRemote, _ := cmd.Flags().GetBool("remote")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		yes, _ := cmd.Flags().GetBool("yes")

		if err := runRestore(config.Get(), inputFile, fromRemote, dryRun, yes); err != nil {
			log.Fatal().Err(err).Msg("Restore failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringP("input", "i", "", "Backup archive path, or object name with --remote (required)")
	restoreCmd.Flags().Bool("remote", false, "Read the archive from backup_target")
	restoreCmd.Flags().Bool("dry-run", false, "Preview restore without writing anything")
	restoreCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	_ = restoreCmd.MarkFlagRequired("input")
}

// runRestore 执行还原
func runRestore(cfg *config.Config, input string, fromRemote, dryRun, yes bool) error {
	ctx := context.Background()

	var (
		reader  io.Reader
		release func()
	)
	if fromRemote {
		if strings.TrimSpace(cfg.BackupTarget) == "" {
			return fmt.Errorf("--remote requires backup_target to be set")
		}
		remote, err := storage.NewRemote(ctx, cfg.BackupTarget, cfg.BackupOptions)
		if err != nil {
			return fmt.Errorf("failed to initialize backup remote: %w", err)
		}
		reader, release, err = backup.Download(ctx, remote, input)
		if err != nil {
			return err
		}
	} else {
		file, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("backup file not found: %w", err)
		}
		reader, release = file, func() { _ = file.Close() }
	}
	defer release()

	if !dryRun && !yes {
		fmt.Println("\nWarning: This will restore data from backup into the current database and upload directory.")
		fmt.Print("Do you want to continue? [y/N]: ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Restore cancelled.")
			return nil
		}
	}

	db, err := database.NewDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if !dryRun {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	images, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		return err
	}

	stats, err := backup.Restore(ctx, reader, cats.NewRepository(db, cfg.DBAcquireTimeout), images, dryRun)
	if err != nil {
		return err
	}

	printRestoreSummary(stats, cfg)
	return nil
}

// printRestoreSummary 打印还原摘要
func printRestoreSummary(stats *backup.RestoreStats, cfg *config.Config) {
	fmt.Println()
	if stats.DryRun {
		fmt.Println("Restore Summary (DRY RUN):")
	} else {
		fmt.Println("Restore Summary:")
	}
	fmt.Println("================")
	if meta := stats.Metadata; meta != nil {
		fmt.Printf("Backup:          %s (%s, %s)\n", meta.Timestamp.Format("2006-01-02 15:04:05"), meta.Database, meta.AppVersion)
		if meta.UploadDir != cfg.UploadDir {
			fmt.Printf("Note:            backup upload_dir %q differs from current %q, image paths are kept as recorded\n", meta.UploadDir, cfg.UploadDir)
		}
	}
	fmt.Printf("Cats restored:   %d\n", stats.CatsRestored)
	fmt.Printf("Cats skipped:    %d\n", stats.CatsSkipped)
	fmt.Printf("Images written:  %d\n", stats.ImagesWritten)
	fmt.Printf("Images skipped:  %d\n", stats.ImagesSkipped)
}
