/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"context"
	"io/ioutil"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
)

const (
	screenshotTimeout = 30 * time.Second
	screenshotQuality = 90
	// echarts animates the first render
	chartRenderDelay = 2 * time.Second
)

// ScreenshotFilename png path for a html chart
func ScreenshotFilename(htmlFile string) string {
	return strings.TrimSuffix(htmlFile, filepath.Ext(htmlFile)) + "_screen.png"
}

// Screenshot renders html chart in headless chrome and writes the whole page to ScreenshotFilename
func Screenshot(ctx context.Context, htmlFile string) (string, error) {
	abs, err := filepath.Abs(htmlFile)
	if err != nil {
		return "", err
	}
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, screenshotTimeout)
	defer cancelTimeout()

	var png []byte
	if err := chromedp.Run(ctx,
		chromedp.Navigate("file://"+abs),
		chromedp.Sleep(chartRenderDelay),
		capturePage(&png),
	); err != nil {
		return "", errors.Wrapf(err, "failed to screenshot %s", htmlFile)
	}
	out := ScreenshotFilename(htmlFile)
	if err := ioutil.WriteFile(out, png, 0644); err != nil {
		return "", errors.Wrap(err, "failed to write screenshot")
	}
	return out, nil
}

// capturePage resizes viewport to the page content and captures it, viewport emulation is overridden
func capturePage(res *[]byte) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		_, _, content, err := page.GetLayoutMetrics().Do(ctx)
		if err != nil {
			return err
		}
		w, h := int64(math.Ceil(content.Width)), int64(math.Ceil(content.Height))
		err = emulation.SetDeviceMetricsOverride(w, h, 1, false).
			WithScreenOrientation(&emulation.ScreenOrientation{Type: emulation.OrientationTypePortraitPrimary}).
			Do(ctx)
		if err != nil {
			return err
		}
		*res, err = page.CaptureScreenshot().
			WithQuality(screenshotQuality).
			WithClip(&page.Viewport{X: content.X, Y: content.Y, Width: content.Width, Height: content.Height, Scale: 1}).
			Do(ctx)
		return err
	}
}
