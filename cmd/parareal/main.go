package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/parareal/internal/config"
	"github.com/san-kum/parareal/internal/experiment"
	"github.com/san-kum/parareal/internal/export"
	"github.com/san-kum/parareal/internal/integrators"
	"github.com/san-kum/parareal/internal/models"
	"github.com/san-kum/parareal/internal/optim"
	"github.com/san-kum/parareal/internal/report"
	"github.com/san-kum/parareal/internal/storage"
	"github.com/spf13/cobra"
)

var (
	dataDir string
	verbose bool

	ndof         int
	ndofCoarse   int
	tend         float64
	nslices      int
	fine         string
	coarse       string
	nstepsFine   int
	nstepsCoarse int
	tolerance    float64
	iterMax      int
	workers      int
	nu           float64
	omega        float64
	damping      float64
	lambda       float64

	configFile string
	preset     string
	save       bool
	plotFinal  bool
	svgPath    string
	objective  string
	grid       []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "parareal",
		Short:        "parallel-in-time solver for linear ODE systems",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".parareal", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every iteration")

	defaults := config.DefaultConfig()
	runCmd := &cobra.Command{
		Use:   "run [problem]",
		Short: "solve a problem with parareal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runParareal,
	}
	runCmd.Flags().IntVar(&ndof, "ndof", defaults.NDOF, "degrees of freedom on the fine mesh")
	runCmd.Flags().IntVar(&ndofCoarse, "ndof-coarse", 0, "degrees of freedom on the coarse mesh (0 disables coarsening)")
	runCmd.Flags().Float64Var(&tend, "tend", defaults.TEnd, "end time")
	runCmd.Flags().IntVar(&nslices, "slices", defaults.NSlices, "number of time slices")
	runCmd.Flags().StringVar(&fine, "fine", defaults.Fine, "fine integrator ("+strings.Join(integrators.Names(), ", ")+")")
	runCmd.Flags().StringVar(&coarse, "coarse", defaults.Coarse, "coarse integrator")
	runCmd.Flags().IntVar(&nstepsFine, "nsteps-fine", defaults.NStepsFine, "fine steps per slice")
	runCmd.Flags().IntVar(&nstepsCoarse, "nsteps-coarse", defaults.NStepsCoarse, "coarse steps per slice")
	runCmd.Flags().Float64Var(&tolerance, "tol", defaults.Tolerance, "residual tolerance")
	runCmd.Flags().IntVar(&iterMax, "iter-max", defaults.IterMax, "iteration budget per slice")
	runCmd.Flags().IntVar(&workers, "workers", 0, "slices propagated at once (0 uses GOMAXPROCS)")
	runCmd.Flags().Float64Var(&nu, "nu", defaults.Params.Nu, "diffusivity (heat)")
	runCmd.Flags().Float64Var(&omega, "omega", defaults.Params.Omega, "angular frequency (oscillator)")
	runCmd.Flags().Float64Var(&damping, "damping", defaults.Params.Damping, "damping (oscillator)")
	runCmd.Flags().Float64Var(&lambda, "lambda", defaults.Params.Lambda, "decay rate (decay)")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().BoolVar(&save, "save", true, "store the run in the data directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the residual history of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&plotFinal, "final", false, "plot the final state instead")
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the residual history as svg")

	tuneCmd := &cobra.Command{
		Use:   "tune [problem]",
		Short: "grid search parareal settings",
		Long: "grid search parareal settings, e.g.\n" +
			"  parareal tune heat --grid nslices=4,8,16 --grid nsteps_coarse=1,2,4",
		Args: cobra.MaximumNArgs(1),
		RunE: tuneParareal,
	}
	tuneCmd.Flags().AddFlagSet(runCmd.Flags())
	tuneCmd.Flags().StringArrayVar(&grid, "grid", nil, "parameter=v1,v2,... ("+strings.Join(optim.Params(), ", ")+")")
	tuneCmd.Flags().StringVar(&objective, "objective", "iterations", "quantity to minimise ("+strings.Join(optim.Objectives(), ", ")+")")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [problem]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			problems := models.Names()
			if len(args) > 0 {
				problems = args
			}
			for _, p := range problems {
				presets := config.ListPresets(p)
				if len(presets) == 0 {
					fmt.Printf("no presets for problem: %s\n", p)
					continue
				}
				fmt.Printf("presets for %s:\n", p)
				for _, name := range presets {
					fmt.Printf("  %s\n", name)
				}
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, presetsCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers preset, config file and explicitly set flags, in
// that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Problem = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Problem, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Problem))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 && loaded.Problem != args[0] {
			return nil, fmt.Errorf("config file is for %s, not %s", loaded.Problem, args[0])
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("ndof") {
		cfg.NDOF = ndof
	}
	if flags.Changed("ndof-coarse") {
		cfg.NDOFCoarse = ndofCoarse
	}
	if flags.Changed("tend") {
		cfg.TEnd = tend
	}
	if flags.Changed("slices") {
		cfg.NSlices = nslices
	}
	if flags.Changed("fine") {
		cfg.Fine = fine
	}
	if flags.Changed("coarse") {
		cfg.Coarse = coarse
	}
	if flags.Changed("nsteps-fine") {
		cfg.NStepsFine = nstepsFine
	}
	if flags.Changed("nsteps-coarse") {
		cfg.NStepsCoarse = nstepsCoarse
	}
	if flags.Changed("tol") {
		cfg.Tolerance = tolerance
	}
	if flags.Changed("iter-max") {
		cfg.IterMax = iterMax
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("nu") {
		cfg.Params.Nu = nu
	}
	if flags.Changed("omega") {
		cfg.Params.Omega = omega
	}
	if flags.Changed("damping") {
		cfg.Params.Damping = damping
	}
	if flags.Changed("lambda") {
		cfg.Params.Lambda = lambda
	}

	return cfg, cfg.Validate()
}

func runParareal(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp := experiment.New(cfg, slog.Default())
	if err := exp.Setup(); err != nil {
		return err
	}

	fmt.Printf("running parareal on %s...\n", cfg.Problem)
	out, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(out.Meta, out.History, out.Final)
		if err != nil {
			return err
		}
		out.Meta.ID = id
	}

	fmt.Println(report.Summary(out.Meta))
	fmt.Println(report.ResidualChart(out.History))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROBLEM\tTIME\tNDOF\tSLICES\tFINE/COARSE\tITERS\tCONVERGED\tSERIAL ERR")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%s/%s\t%d\t%t\t%.3e\n",
			run.ID,
			run.Problem,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.NDOF,
			run.NDOFCoarse,
			run.NSlices,
			run.Fine,
			run.Coarse,
			run.Iterations,
			run.Converged,
			run.SerialError,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	if plotFinal {
		final, err := st.LoadFinal(runID)
		if err != nil {
			return err
		}
		chart, err := report.StateChart(final, fmt.Sprintf("%s state at t=%g", meta.Problem, meta.TEnd))
		if err != nil {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		fmt.Println(chart)
		return nil
	}

	history, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	fmt.Println(report.Summary(*meta))
	fmt.Println(report.ResidualChart(history))

	if svgPath != "" {
		if err := os.WriteFile(svgPath, []byte(export.ResidualSVG(history, report.LogFloor, 640, 320)), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgPath)
	}
	return nil
}

func tuneParareal(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(grid))
	ranges := make([][]float64, 0, len(grid))
	for _, g := range grid {
		name, list, ok := strings.Cut(g, "=")
		if !ok {
			return fmt.Errorf("bad grid %q, want name=v1,v2", g)
		}
		var values []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return fmt.Errorf("grid %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	if len(names) == 0 {
		return fmt.Errorf("no --grid given")
	}

	search, err := optim.NewGridSearch(names, ranges, slog.Default())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	best, trials, err := search.Search(ctx, cfg, objective)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tITERS\tCONVERGED\tSERIAL ERR\tWALL\n", strings.ToUpper(strings.Join(names, "\t")))
	for _, t := range trials {
		vals := make([]string, len(names))
		for i, n := range names {
			vals[i] = strconv.FormatFloat(t.Params[n], 'g', -1, 64)
		}
		if t.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t%v\n", strings.Join(vals, "\t"), t.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%t\t%.3e\t%.3fs\n",
			strings.Join(vals, "\t"), t.Meta.Iterations, t.Meta.Converged, t.Meta.SerialError, t.Meta.WallTime)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest by %s: %v\n", objective, best.Params)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
