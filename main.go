package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Output
	outputFile      string
	copyToClipboard bool
	quiet           bool

	// Filtering
	ignorePatterns string
	maxSizeBytes   int64
	includeBinary  bool
	noIgnore       bool

	// Processing
	numThreads int

	// Token counting
	countTokens    bool
	tokenizerModel string
)

// version is set via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "codebase2xml [PATH]",
	Short: "Transform a codebase directory into a comprehensive XML archive",
	Long: `codebase2xml walks a directory tree (or a freshly cloned Git repository),
classifies every file, and emits a single XML archive preserving hierarchy,
metadata, and text content.`,
	Version:       version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := "."
	if len(args) == 1 {
		input = args[0]
	}

	source := input
	if isGitURL(input) {
		var progress io.Writer
		if !quiet {
			progress = os.Stderr
			fmt.Fprintf(os.Stderr, "Cloning %s...\n", input)
		}
		cloneDir, cleanup, err := cloneGitRepo(input, progress)
		if err != nil {
			return err
		}
		defer cleanup()
		source = cloneDir
	}

	cfg := DefaultConfig()
	cfg.IgnorePatterns = append(cfg.IgnorePatterns, splitPatterns(ignorePatterns)...)
	cfg.MaxFileSize = maxSizeBytes
	cfg.IncludeBinary = includeBinary
	cfg.UseGitignore = !noIgnore
	cfg.Workers = numThreads
	if countTokens {
		tk, err := newTokenizer(tokenizerModel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: token counting disabled: %v\n", err)
		} else {
			cfg.Tokenizer = tk
		}
	}
	archiver := NewArchiver(cfg)

	if !quiet {
		fmt.Printf("Analyzing codebase: %s\n", source)
		if extra := splitPatterns(ignorePatterns); len(extra) > 0 {
			fmt.Printf("  Extra ignore patterns: %s\n", strings.Join(extra, ", "))
		}
		fmt.Printf("  Max file size: %s\n", formatSize(cfg.MaxFileSize))
		fmt.Printf("  Include binary: %v\n", cfg.IncludeBinary)
	}

	doc, err := archiver.Archive(ctx, source)
	if err != nil {
		return err
	}
	data, err := doc.Bytes()
	if err != nil {
		return err
	}

	for _, w := range doc.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	stats := doc.Metadata.Statistics
	if copyToClipboard {
		if err := clipboard.WriteAll(string(data)); err != nil {
			return fmt.Errorf("copying archive to clipboard: %w", err)
		}
		if !quiet {
			color.Green("Archive copied to clipboard (%s)", formatSize(int64(len(data))))
		}
	} else {
		outPath := outputFile
		if outPath == "" {
			outPath = defaultOutputPath(source, cfg.Now())
		} else if dir := filepath.Dir(outPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}
		if err := writeFileAtomic(outPath, data); err != nil {
			return err
		}
		if quiet {
			fmt.Println(outPath)
			return nil
		}
		color.Green("Archive created successfully!")
		fmt.Printf("  Output file: %s\n", outPath)
		fmt.Printf("  Archive size: %s\n", formatSize(int64(len(data))))
	}

	if !quiet {
		fmt.Println("Archive contains:")
		fmt.Printf("  Directories: %d\n", stats.TotalDirectories)
		fmt.Printf("  Files: %d\n", stats.TotalFiles)
		fmt.Printf("  Total size: %s\n", formatSize(stats.TotalSize))
		if stats.TotalTokens > 0 {
			fmt.Printf("  Total tokens: %d\n", stats.TotalTokens)
		}
	}
	return nil
}

// splitPatterns parses a comma-separated pattern list.
func splitPatterns(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output XML file path (default: <name>_archive_<timestamp>.xml)")
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	rootCmd.Flags().BoolVarP(&copyToClipboard, "clipboard", "c", false, "Copy the archive to the clipboard instead of writing a file")
	viper.BindPFlag("clipboard", rootCmd.Flags().Lookup("clipboard"))
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the output path")
	viper.BindPFlag("quiet", rootCmd.Flags().Lookup("quiet"))

	rootCmd.Flags().StringVarP(&ignorePatterns, "ignore", "i", "", `Extra ignore patterns, comma-separated (e.g. "*.log,temp,*.tmp")`)
	viper.BindPFlag("ignore", rootCmd.Flags().Lookup("ignore"))
	rootCmd.Flags().Int64VarP(&maxSizeBytes, "max-size", "s", DefaultMaxFileSize, "Maximum file size to include content for, in bytes")
	viper.BindPFlag("max_size", rootCmd.Flags().Lookup("max-size"))
	rootCmd.Flags().BoolVarP(&includeBinary, "include-binary", "b", false, "Embed binary file content base64-encoded")
	viper.BindPFlag("include_binary", rootCmd.Flags().Lookup("include-binary"))
	rootCmd.Flags().BoolVar(&noIgnore, "no-ignore", false, "Don't respect a root .gitignore file")
	viper.BindPFlag("no_ignore", rootCmd.Flags().Lookup("no-ignore"))

	rootCmd.Flags().IntVarP(&numThreads, "threads", "t", 0, "Worker count for file processing (0 for auto)")
	viper.BindPFlag("threads", rootCmd.Flags().Lookup("threads"))

	rootCmd.Flags().BoolVar(&countTokens, "tokens", false, "Annotate file records with token counts")
	viper.BindPFlag("tokens", rootCmd.Flags().Lookup("tokens"))
	rootCmd.Flags().StringVar(&tokenizerModel, "model", "", "Tokenizer model for --tokens (default gpt-4o)")
	viper.BindPFlag("model", rootCmd.Flags().Lookup("model"))

	viper.SetDefault("max_size", DefaultMaxFileSize)
	viper.SetDefault("threads", 0)
}

// initConfig layers the config file and environment under the flags.
func initConfig() {
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "codebase2xml"))
	}
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.SetEnvPrefix("CODEBASE2XML")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}

	// Flag > env > config file > default, per binding.
	if !rootCmd.Flags().Changed("output") {
		outputFile = viper.GetString("output")
	}
	if !rootCmd.Flags().Changed("clipboard") {
		copyToClipboard = viper.GetBool("clipboard")
	}
	if !rootCmd.Flags().Changed("quiet") {
		quiet = viper.GetBool("quiet")
	}
	if !rootCmd.Flags().Changed("ignore") {
		ignorePatterns = viper.GetString("ignore")
	}
	if !rootCmd.Flags().Changed("max-size") {
		maxSizeBytes = viper.GetInt64("max_size")
	}
	if !rootCmd.Flags().Changed("include-binary") {
		includeBinary = viper.GetBool("include_binary")
	}
	if !rootCmd.Flags().Changed("no-ignore") {
		noIgnore = viper.GetBool("no_ignore")
	}
	if !rootCmd.Flags().Changed("threads") {
		numThreads = viper.GetInt("threads")
	}
	if !rootCmd.Flags().Changed("tokens") {
		countTokens = viper.GetBool("tokens")
	}
	if !rootCmd.Flags().Changed("model") {
		tokenizerModel = viper.GetString("model")
	}
}

func main() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
