package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ayouballali/mahali-pos/internal/barcode"
	"github.com/ayouballali/mahali-pos/internal/camera"
	"github.com/ayouballali/mahali-pos/internal/cart"
	"github.com/ayouballali/mahali-pos/internal/repository"
	"github.com/ayouballali/mahali-pos/internal/scanner"
	"github.com/ayouballali/mahali-pos/internal/sell"
	"github.com/spf13/cobra"
)

var errNothingScanned = errors.New("no barcode confirmed before the timeout")

type scanOptions struct {
	framesDir string
	count     int
	timeout   time.Duration
	interval  time.Duration
	lookup    bool
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	so := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan --frames <dir>",
		Short: "Run a scan session over still frames and print confirmed codes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			paths, err := listFrames(so.framesDir)
			if err != nil {
				return err
			}
			frames, err := camera.LoadStills(paths...)
			if err != nil {
				return err
			}

			validator := barcode.Validator{AllowAlphanumeric: cfg.Scanner.AllowAlphanumeric}
			sessionCfg := cfg.SessionConfig()
			sessionCfg.Accept = validator.IsValid
			out := cmd.OutOrStdout()

			onCode := func(_ context.Context, d scanner.Detection) {
				fmt.Fprintf(out, "%s\t%s\n", d.Code, d.Format)
			}
			if so.lookup {
				repo, err := repository.NewRepository(cfg.Database.Path)
				if err != nil {
					return err
				}
				defer repo.Close()
				register := sell.NewRegister(cart.New(), repo.Products(), nil, nil, validator, log)
				onCode = lookupPrinter(out, register)
			}

			devices := &camera.StillDevices{Frames: frames, Interval: so.interval}
			n, err := runScan(cmd.Context(), devices, scanner.NewZXingDetector(log, cfg.Scanner.Formats...),
				cfg.SamplerConfig(), sessionCfg, so.count, so.timeout, onCode, log)
			if err != nil {
				return err
			}
			log.Info("scan finished", "confirmed", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&so.framesDir, "frames", "", "directory of PNG or JPEG frames, replayed in name order")
	cmd.Flags().IntVar(&so.count, "count", 1, "stop after this many confirmed codes")
	cmd.Flags().DurationVar(&so.timeout, "timeout", 10*time.Second, "give up after this long")
	cmd.Flags().DurationVar(&so.interval, "interval", 33*time.Millisecond, "simulated time between frames")
	cmd.Flags().BoolVar(&so.lookup, "lookup", false, "look confirmed codes up in the product catalogue")
	_ = cmd.MarkFlagRequired("frames")
	return cmd
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames in %s", dir)
	}
	slices.Sort(paths)
	return paths, nil
}

// runScan drives one session until count codes are confirmed or timeout passes.
func runScan(ctx context.Context, devices camera.Devices, detector scanner.Detector, samplerCfg camera.SamplerConfig,
	sessionCfg scanner.SessionConfig, count int, timeout time.Duration, onCode scanner.DetectFunc, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var confirmed atomic.Int32
	var session *scanner.Session
	session = scanner.NewSession(camera.NewSampler(devices, samplerCfg, log), detector, sessionCfg,
		func(ctx context.Context, d scanner.Detection) {
			onCode(ctx, d)
			if int(confirmed.Add(1)) >= count {
				session.StopInCallback()
			}
		},
		scanner.WithLogger(log),
	)
	if err := session.Start(ctx); err != nil {
		return 0, err
	}

	select {
	case <-session.Done():
	case <-ctx.Done():
		session.Stop()
		<-session.Done()
	}

	n := int(confirmed.Load())
	if n == 0 {
		return 0, errNothingScanned
	}
	return n, nil
}

func lookupPrinter(w io.Writer, register *sell.Register) scanner.DetectFunc {
	return func(ctx context.Context, d scanner.Detection) {
		ev, err := register.HandleScan(ctx, d.Code)
		switch {
		case err != nil:
			fmt.Fprintf(w, "%s\terror\t%v\n", d.Code, err)
		case ev.Kind == sell.EventScanned:
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Code, ev.Kind, ev.Product.Name, ev.Product.SalePrice)
		default:
			fmt.Fprintf(w, "%s\t%s\n", d.Code, ev.Kind)
		}
	}
}
