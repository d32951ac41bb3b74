package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anoixa/catdex/config"
	"github.com/anoixa/catdex/database"
	"github.com/anoixa/catdex/database/repo/cats"
	"github.com/anoixa/catdex/internal/backup"
	"github.com/anoixa/catdex/storage"
	"github.com/anoixa/catdex/utils/format"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// backupCmd 备份命令
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup cats and images to a tar.gz archive",
	Long: `Backup all cats (JSONL) and uploaded images into a tar.gz archive.
When backup_target is set the archive is also uploaded to MinIO or WebDAV.

Example:
  # Backup to default file (./backups/backup_YYYYMMDD_HHMMSS.tar.gz)
  catdex backup

  # Backup to specific file and skip the remote upload
  catdex backup --output ./my-backup.tar.gz --no-upload`,
	Run: func(cmd *cobra.Command, args []string) {
		outputFile, _ := cmd.Flags().GetString("output")
		noUpload, _ := cmd.Flags().GetBool("no-upload")

		if err := runBackup(config.Get(), outputFile, !noUpload); err != nil {
			log.Fatal().Err(err).Msg("Backup failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringP("output", "o", "", "Output tar.gz file path (default: ./backups/backup_YYYYMMDD_HHMMSS.tar.gz)")
	backupCmd.Flags().Bool("no-upload", false, "Do not upload the archive to backup_target")
}

// runBackup 执行备份
func runBackup(cfg *config.Config, outputFile string, upload bool) error {
	ctx := context.Background()
	now := time.Now()

	if outputFile == "" {
		outputFile = filepath.Join("./backups", backup.FileName(now))
	}
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 先连远端，配置错误时不必生成归档
	var remote storage.Provider
	if upload && strings.TrimSpace(cfg.BackupTarget) != "" {
		var err error
		remote, err = storage.NewRemote(ctx, cfg.BackupTarget, cfg.BackupOptions)
		if err != nil {
			return fmt.Errorf("failed to initialize backup remote: %w", err)
		}
	}

	db, err := database.NewDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	images, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		return err
	}

	driver, _, _ := database.ParseDatabaseURL(cfg.DatabaseURL)

	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	log.Info().Str("output", outputFile).Msg("Starting backup")
	meta, err := backup.Write(ctx, file, cats.NewRepository(db, cfg.DBAcquireTimeout), images, backup.Metadata{
		Timestamp:   now,
		Database:    driver,
		ProjectName: cfg.ProjectName,
		UploadDir:   cfg.UploadDir,
	})
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close archive: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(outputFile)
		return err
	}

	printBackupSummary(meta, outputFile)

	if remote != nil {
		name, err := backup.Upload(ctx, remote, outputFile)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded:   %s/%s\n", remote.Name(), name)
	}
	return nil
}

// printBackupSummary 打印备份摘要
func printBackupSummary(meta *backup.Metadata, outputFile string) {
	fmt.Println("\nBackup Summary:")
	fmt.Println("===============")
	fmt.Printf("Version:    %s\n", meta.Version)
	fmt.Printf("Timestamp:  %s\n", meta.Timestamp.Format(time.DateTime))
	fmt.Printf("Database:   %s\n", meta.Database)
	fmt.Printf("Output:     %s\n", outputFile)
	fmt.Printf("Cats:       %d\n", meta.CatCount)
	fmt.Printf("Images:     %d (%s)\n", meta.ImageCount, format.HumanReadableSize(meta.ImageBytes))
}
