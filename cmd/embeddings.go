package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/grant-recommender/internal/embeddings"
	"github.com/spigell/grant-recommender/internal/logger"
)

var embeddingsCmd = &cobra.Command{
	Use:   "embeddings",
	Short: "Manage section embeddings of projects and grants",
}

var embeddingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store precomputed section vectors from a json file",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		importEmbeddings(args[0])
	},
}

func init() {
	rootCmd.AddCommand(embeddingsCmd)
	embeddingsCmd.AddCommand(embeddingsImportCmd)
}

func importEmbeddings(path string) {
	ctx := context.Background()

	config, err := getConfig()
	if err != nil {
		log.Fatalf("getting a config: %s", err)
	}

	logger, err := logger.New(config.Log)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	batch, err := embeddings.LoadBatch(path)
	if err != nil {
		logger.Fatal("reading embeddings", zap.String("filename", path), zap.Error(err))
	}

	database, err := openDatabase(ctx, config.Database)
	if err != nil {
		logger.Fatal("connecting to the database", zap.Error(err))
	}
	defer database.Close()

	stats, err := embeddings.NewStore(database.Querier(), logger).Import(ctx, batch)
	if err != nil {
		logger.Fatal("importing embeddings", zap.Error(err))
	}

	logger.Info("embeddings imported",
		zap.Int("projects", stats.Projects),
		zap.Int("grants", stats.Grants),
		zap.Int("missing", stats.Missing),
	)
}
