package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/fossrun/internal/ansi"
	"github.com/CZERTAINLY/fossrun/internal/log"
	"github.com/CZERTAINLY/fossrun/internal/model"
	"github.com/CZERTAINLY/fossrun/internal/parser"
	"github.com/CZERTAINLY/fossrun/internal/service"
	"github.com/CZERTAINLY/fossrun/internal/settings"
	"github.com/CZERTAINLY/fossrun/internal/stage"

	"github.com/spf13/cobra"
)

const reportFileName = "fosslight_report"

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "creates the virtual environment and installs FOSSLight Scanner",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := commandContext(cmd, "setup")
		p, err := service.ProvisionerFromConfig(config, os.Stdout)
		if err != nil {
			return err
		}
		if err := p.EnsureReady(ctx); err != nil {
			return err
		}
		fmt.Printf("Environment ready: %s\n", p.Env().Dir)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path...]",
	Short: "analyzes directories or files, the current directory by default",
	RunE:  doAnalyze,
}

var analyzeFileCmd = &cobra.Command{
	Use:   "analyze-file file",
	Short: "analyzes a single file copied into a temporary directory of the root",
	Args:  cobra.ExactArgs(1),
	RunE:  doAnalyzeFile,
}

var compareCmd = &cobra.Command{
	Use:   "compare report...",
	Short: "compares FOSSLight reports",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doCompare,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run command reads the configuration and executes the scans",
	RunE:  doRun,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "manages stored user settings",
}

var settingsSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "stores default analysis settings",
	RunE:  doSaveSettings,
}

func init() {
	analyzeCmd.Flags().StringSliceP("workspace", "w", nil, "workspace or link to analyze, can be repeated")
	analyzeCmd.Flags().StringSlice("mode", nil, "scanner modes (default source,binary,dependency)")
	analyzeCmd.Flags().StringP("format", "f", "yaml", "report format")
	analyzeCmd.Flags().StringP("output", "o", "", "output directory (default the current directory)")
	analyzeCmd.Flags().String("output-file", reportFileName, "output file name")

	analyzeFileCmd.Flags().String("root", ".", "directory the file is staged in and the report is written to")
	analyzeFileCmd.Flags().StringP("format", "f", "excel", "report format")

	compareCmd.Flags().StringP("format", "f", "", "report format")
	compareCmd.Flags().StringP("output", "o", "", "output directory")
	compareCmd.Flags().String("output-file", "", "output file name")

	settingsSaveCmd.Flags().String("path", "", "setting file (default <user config dir>/fossrun/setting.json)")
	settingsSaveCmd.Flags().StringSlice("mode", []string{"all"}, "scanner modes")
	settingsSaveCmd.Flags().StringP("format", "f", "excel", "report format")
	settingsSaveCmd.Flags().StringP("output", "o", "", "output directory")
	settingsSaveCmd.Flags().String("output-file", reportFileName, "output file name")
	settingsSaveCmd.Flags().StringSlice("exclude", nil, "paths excluded from analysis")
	settingsCmd.AddCommand(settingsSaveCmd)
}

func commandContext(cmd *cobra.Command, name string) context.Context {
	attrs := slog.Group("fossrun",
		slog.String("cmd", name),
		slog.Int("pid", os.Getpid()),
	)
	return log.ContextAttrs(cmd.Context(), attrs)
}

func doAnalyze(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd, "analyze")
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	workspaces, _ := flags.GetStringSlice("workspace")
	modes, _ := flags.GetStringSlice("mode")
	format, _ := flags.GetString("format")
	output, _ := flags.GetString("output")
	outputFile, _ := flags.GetString("output-file")

	subjects := make([]model.Subject, 0, len(args)+len(workspaces))
	for _, arg := range args {
		typ := model.SubjectDir
		if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
			typ = model.SubjectFile
		}
		subjects = append(subjects, model.Subject{Type: typ, Path: arg})
	}
	for _, ws := range workspaces {
		subjects = append(subjects, model.Subject{Type: model.SubjectWorkspace, Path: ws})
	}
	subject := root
	if len(subjects) == 0 {
		subjects = append(subjects, model.Subject{Type: model.SubjectDir, Path: root})
	} else {
		subject = subjects[0].Path
	}

	if len(modes) == 0 {
		modes = []string{"source", "binary", "dependency"}
	}
	if output == "" {
		output = root
	}

	return analyze(ctx, subject, model.Request{
		Type: model.RequestAnalyze,
		Config: model.RequestConfig{
			Mode:           modes,
			Subjects:       subjects,
			OutputFormat:   format,
			OutputPath:     output,
			OutputFileName: outputFile,
		},
	})
}

func doAnalyzeFile(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd, "analyze-file")
	rootFlag, _ := cmd.Flags().GetString("root")
	format, _ := cmd.Flags().GetString("format")
	root, err := filepath.Abs(rootFlag)
	if err != nil {
		return err
	}
	file, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	dir, cleanup, err := stage.Stage(root, file)
	if err != nil {
		return fmt.Errorf("error during analysis: %w", err)
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.WarnContext(ctx, "removing temporary directory failed", "dir", dir, "error", err)
		}
	}()
	slog.DebugContext(ctx, "copied file to temporary directory", "dir", dir)

	return analyze(ctx, file, model.Request{
		Type: model.RequestAnalyze,
		Config: model.RequestConfig{
			Mode:           []string{"source"},
			Subjects:       []model.Subject{{Type: model.SubjectDir, Path: dir}},
			OutputFormat:   format,
			OutputPath:     root,
			OutputFileName: reportFileName,
		},
	})
}

func doCompare(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd, "compare")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	outputFile, _ := cmd.Flags().GetString("output-file")

	subjects := make([]model.Subject, 0, len(args))
	for _, arg := range args {
		subjects = append(subjects, model.Subject{Type: model.SubjectFile, Path: arg})
	}
	return analyze(ctx, args[0], model.Request{
		Type: model.RequestCompare,
		Config: model.RequestConfig{
			Subjects:       subjects,
			OutputFormat:   format,
			OutputPath:     output,
			OutputFileName: outputFile,
		},
	})
}

// analyze prepares the environment, runs req and prints scanner output
// without color sequences.
func analyze(ctx context.Context, subject string, req model.Request) error {
	batch, err := parser.Parse(req)
	if err != nil {
		return err
	}

	orchestrator, err := service.OrchestratorFromConfig(config)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "using environment", "venv", orchestrator.Env().Dir)
	ensureReady(ctx, os.Stdout)

	// Ctrl-C kills the running scanner
	stop := context.AfterFunc(ctx, func() {
		orchestrator.ForceQuit(context.WithoutCancel(ctx))
	})
	defer stop()

	fmt.Printf("Analysis Subject: %s\n\n", subject)
	fmt.Println("Analysis started.")
	result := orchestrator.Execute(ctx, batch, ansi.NewWriter(os.Stdout))
	fmt.Println("Analysis completed.")

	if !result.Success {
		return errors.New(result.Message)
	}
	fmt.Println(result.Message)
	return nil
}

// ensureReady provisions the environment. A failure is only reported, the
// scan then fails on its own if the scanner is missing.
func ensureReady(ctx context.Context, progress io.Writer) {
	p, err := service.ProvisionerFromConfig(config, progress)
	if err == nil {
		err = p.EnsureReady(ctx)
	}
	if err != nil {
		slog.WarnContext(ctx, "environment is not ready", "error", err)
	}
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd, "run")

	orchestrator, err := service.OrchestratorFromConfig(config)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "using environment", "venv", orchestrator.Env().Dir)
	// stdout is reserved for results
	ensureReady(ctx, os.Stderr)

	stop := context.AfterFunc(ctx, func() {
		orchestrator.ForceQuit(context.WithoutCancel(ctx))
	})
	defer stop()

	supervisor, err := service.SupervisorFromConfig(ctx, config, orchestrator)
	if err != nil {
		return err
	}
	supervisor.WithObservers(ansi.NewWriter(os.Stderr))
	if config.Service.Mode == model.ServiceModeTimer {
		// first run does not wait for the schedule
		supervisor.Start()
	}
	return supervisor.Do(ctx)
}

func doSaveSettings(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("path")
	modes, _ := flags.GetStringSlice("mode")
	format, _ := flags.GetString("format")
	output, _ := flags.GetString("output")
	outputFile, _ := flags.GetString("output-file")
	exclude, _ := flags.GetStringSlice("exclude")

	if path == "" {
		var err error
		path, err = settings.DefaultPath()
		if err != nil {
			return err
		}
	}
	msg, err := settings.Save(path, model.Setting{
		Mode:         modes,
		OutputFormat: format,
		OutputPath:   output,
		OutputFile:   outputFile,
		Exclude:      exclude,
	})
	if err != nil {
		return err
	}
	slog.DebugContext(cmd.Context(), "setting saved", "path", path)
	fmt.Println(msg)
	return nil
}
