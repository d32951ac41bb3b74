package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/anoixa/catdex/config"
	"github.com/anoixa/catdex/database"
	"github.com/anoixa/catdex/database/repo/cats"
	catsvc "github.com/anoixa/catdex/internal/services/cat"
	"github.com/anoixa/catdex/internal/worker"
	"github.com/anoixa/catdex/storage"
	"github.com/anoixa/catdex/utils/format"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// cleanCmd 清理上传目录中没有对应记录的图片
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove uploaded images that no cat references",
	Long: `Remove files in the upload directory that no row in the cats table references.
Files newer than --min-age are kept so uploads still in flight are not touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		minAge, _ := cmd.Flags().GetDuration("min-age")

		if err := runClean(config.Get(), dryRun, minAge); err != nil {
			log.Fatal().Err(err).Msg("Clean failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().Bool("dry-run", false, "Only show what would be cleaned, don't actually delete")
	cleanCmd.Flags().Duration("min-age", 0, "Only remove files older than this (default: orphan_min_age)")
}

// runClean 执行清理
func runClean(cfg *config.Config, dryRun bool, minAge time.Duration) error {
	if minAge <= 0 {
		minAge = cfg.OrphanMinAge
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

	pool := worker.NewPool(1, 1)
	defer pool.Stop()

	scanner := catsvc.NewOrphanScanner(cats.NewRepository(db, cfg.DBAcquireTimeout), images, pool, minAge, 0)
	result, err := scanner.Scan(context.Background(), dryRun)
	if err != nil {
		return err
	}

	printCleanStats(result)
	return nil
}

// printCleanStats 打印清理统计
func printCleanStats(result *catsvc.ScanResult) {
	fmt.Println()
	fmt.Println("========================================")
	if result.DryRun {
		fmt.Println("       Clean Statistics (DRY RUN)")
	} else {
		fmt.Println("       Clean Statistics")
	}
	fmt.Println("========================================")
	fmt.Printf("Files scanned:     %d\n", result.Scanned)
	fmt.Printf("Orphan files:      %d\n", len(result.Orphans))
	for _, orphan := range result.Orphans {
		fmt.Printf("  - %s (%s)\n", orphan.Name, format.HumanReadableSize(orphan.Size))
	}
	if !result.DryRun {
		fmt.Printf("Files removed:     %d\n", result.Removed)
		fmt.Printf("Space freed:       %s\n", format.HumanReadableSize(result.Freed))
	}
	fmt.Println("========================================")
}
