package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ayouballali/mahali-pos/internal/barcode"
	"github.com/ayouballali/mahali-pos/internal/camera"
	"github.com/ayouballali/mahali-pos/internal/scanner"
	"github.com/spf13/cobra"
)

func newDecodeCmd(opts *rootOptions) *cobra.Command {
	var crop bool
	cmd := &cobra.Command{
		Use:   "decode <image>...",
		Short: "Decode barcodes from still images with the scanner's detector and validator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			var region *camera.CropRegion
			if crop {
				region = cfg.Scanner.Crop
			}
			detector := scanner.NewZXingDetector(log, cfg.Scanner.Formats...)
			validator := barcode.Validator{AllowAlphanumeric: cfg.Scanner.AllowAlphanumeric}
			return decodeImages(cmd.Context(), cmd.OutOrStdout(), detector, validator, region, args)
		},
	}
	cmd.Flags().BoolVar(&crop, "crop", false, "crop images to the configured scan region first")
	return cmd
}

// decodeImages prints one tab separated line per image and fails when any image
// yields no acceptable code.
func decodeImages(ctx context.Context, w io.Writer, d scanner.Detector, v barcode.Validator, crop *camera.CropRegion, paths []string) error {
	failed := 0
	for _, p := range paths {
		frames, err := camera.LoadStills(p)
		if err != nil {
			fmt.Fprintf(w, "%s\terror\t%v\n", p, err)
			failed++
			continue
		}
		img := frames[0]
		if crop != nil {
			img = camera.Crop(img, *crop)
		}

		det, ok := d.Detect(ctx, img)
		switch {
		case !ok:
			fmt.Fprintf(w, "%s\tno barcode\n", p)
			failed++
		case !v.IsValid(det.Code):
			fmt.Fprintf(w, "%s\t%s\t%s\trejected\n", p, det.Code, det.Format)
			failed++
		default:
			fmt.Fprintf(w, "%s\t%s\t%s\n", p, det.Code, det.Format)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images not decoded", failed, len(paths))
	}
	return nil
}
