package main

import (
	"errors"
	"fmt"

	"github.com/natexcvi/go-chatgpt/cache"
	"github.com/natexcvi/go-chatgpt/chatgpt"
	"github.com/natexcvi/go-chatgpt/config"
	"github.com/natexcvi/go-chatgpt/engines"
	"github.com/natexcvi/go-chatgpt/transcript"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "chatgpt",
	Short: "A caching, retrying chat completion client.",
	Long: `A chat completion client.
Every completion is logged under <history-dir>/logs and cached
under <history-dir>/cache. Pass --use-cache to answer repeated
conversations from the cache.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		return readConfigFile()
	},
}

func readConfigFile() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("chatgpt")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/chatgpt")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	log.Debugf("using config file %s", v.ConfigFileUsed())
	return nil
}

// newClient wires a client from cfg. The returned closer releases the
// cache database.
func newClient(cfg config.Config) (*chatgpt.Client, func() error, error) {
	if cfg.APIKey == "" {
		return nil, nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	store, err := cache.OpenBoltStore(cfg.CacheDir())
	if err != nil {
		return nil, nil, err
	}
	engine := engines.NewGPTEngine(cfg.APIKey, cfg.BaseURL)
	logger := transcript.NewLogger(transcript.NewDirSink(cfg.LogsDir()))
	client := chatgpt.NewClient(engine, store, logger).WithRetryPolicy(cfg.RetryPolicy())
	return client, store.Close, nil
}

func init() {
	config.SetDefaults(v)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./chatgpt.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log requests, retries and cache hits")
	flags.String("model", chatgpt.DefaultModel, "the model to use")
	flags.Float32("temperature", 0, "the sampling temperature")
	flags.Bool("use-cache", false, "answer from the cache when the conversation was seen before")
	flags.String("history-dir", config.DefaultHistoryDir, "where transcripts and the cache are kept")
	flags.String("base-url", config.DefaultBaseURL, "the completion service base URL")
	_ = v.BindPFlag("model", flags.Lookup("model"))
	_ = v.BindPFlag("temperature", flags.Lookup("temperature"))
	_ = v.BindPFlag("use_cache", flags.Lookup("use-cache"))
	_ = v.BindPFlag("history_dir", flags.Lookup("history-dir"))
	_ = v.BindPFlag("base_url", flags.Lookup("base-url"))
}

func main() {
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(fingerprintCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
