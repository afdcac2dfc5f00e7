package main

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/classifiers"
	"github.com/YuminosukeSato/mlsandbox/imagedata"
	"github.com/YuminosukeSato/mlsandbox/metrics"
	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
	"github.com/YuminosukeSato/mlsandbox/pkg/log"
	"github.com/YuminosukeSato/mlsandbox/polynomial"
)

const (
	// Global flags.
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"

	// polynomial flags.
	flagDegree      = "degree"
	flagPoints      = "points"
	flagTestPoints  = "test-points"
	flagRegularized = "regularized"
	flagAlpha       = "alpha"
	flagOut         = "out"
	flagWeights     = "weights"

	// digits flags.
	flagClassifier     = "classifier"
	flagHidden         = "hidden"
	flagRegularization = "regularization"
	flagSeed           = "seed"
	flagResolution     = "resolution"
	flagPlotSample     = "plot-sample"
	flagDigitsFile     = "digits-file"

	classifierPoly = "poly"
	classifierNN   = "nn"
)

// NewApp returns the CLI writing results to out and errors to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "mlsandbox",
		Usage:     "polynomial regression and digit classification demos",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagLogLevel,
				Value:   "warn",
				Usage:   "log level: debug, info, warn or error",
				EnvVars: []string{"MLSANDBOX_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    flagLogFormat,
				Value:   "console",
				Usage:   "log format: console or json",
				EnvVars: []string{"MLSANDBOX_LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			return log.Setup(c.String(flagLogLevel), c.String(flagLogFormat))
		},
		Commands: []*cli.Command{
			{
				Name:  "polynomial",
				Usage: "fit a polynomial to noisy samples of 10·sin(3.3πx) + 20x + 5 and plot it",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    flagDegree,
						Aliases: []string{"d"},
						Value:   5,
						Usage:   "polynomial degree",
						EnvVars: []string{"MLSANDBOX_DEGREE"},
					},
					&cli.IntFlag{
						Name:    flagPoints,
						Aliases: []string{"n"},
						Value:   20,
						Usage:   "number of evenly spaced training points",
						EnvVars: []string{"MLSANDBOX_POINTS"},
					},
					&cli.IntFlag{
						Name:  flagTestPoints,
						Value: 100,
						Usage: "number of random test points",
					},
					&cli.BoolFlag{
						Name:  flagRegularized,
						Usage: "use ridge regression instead of ordinary least squares",
					},
					&cli.Float64Flag{
						Name:  flagAlpha,
						Value: polynomial.DefaultRegularization,
						Usage: "ridge regularization strength (with --regularized)",
					},
					&cli.StringFlag{
						Name:    flagOut,
						Aliases: []string{"o"},
						Value:   "polynomial.png",
						Usage:   "plot output path (.png, .svg or .pdf)",
						EnvVars: []string{"MLSANDBOX_OUT"},
					},
					&cli.BoolFlag{
						Name:  flagWeights,
						Usage: "print the fitted coefficients as JSON",
					},
				},
				Action: polynomialAction,
			},
			{
				Name:  "digits",
				Usage: "train a classifier on noisy 8x8 digit images",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagClassifier,
						Aliases: []string{"c"},
						Value:   classifierPoly,
						Usage:   "classifier: poly (polynomial-kernel SVM) or nn (neural network)",
					},
					&cli.IntFlag{
						Name:    flagDegree,
						Aliases: []string{"d"},
						Value:   3,
						Usage:   "polynomial kernel degree (poly)",
						EnvVars: []string{"MLSANDBOX_DEGREE"},
					},
					&cli.IntSliceFlag{
						Name:  flagHidden,
						Value: cli.NewIntSlice(10, 10),
						Usage: "hidden layer sizes (nn)",
					},
					&cli.Float64Flag{
						Name:  flagRegularization,
						Usage: "regularization strength: C for poly (default 1), alpha for nn (default 1e-4)",
					},
					&cli.Int64Flag{
						Name:    flagSeed,
						Usage:   "random seed for noise, splits and model initialisation",
						EnvVars: []string{"MLSANDBOX_SEED"},
					},
					&cli.IntFlag{
						Name:  flagResolution,
						Value: imagedata.BaseResolution,
						Usage: "image resolution, a multiple of 8",
					},
					&cli.PathFlag{
						Name:    flagDigitsFile,
						Usage:   "read digit images from a digits.csv(.gz) file instead of the bundled set",
						EnvVars: []string{"MLSANDBOX_DIGITS_FILE"},
					},
					&cli.StringFlag{
						Name:  flagPlotSample,
						Usage: "write the first training image to this path",
					},
				},
				Action: digitsAction,
			},
		},
	}
}

func polynomialAction(c *cli.Context) error {
	out := c.App.Writer
	degree := c.Int(flagDegree)

	X, y := polynomial.TrainingData(c.Int(flagPoints))
	XTest, yTest := polynomial.TestData(c.Int(flagTestPoints))

	var (
		m   *polynomial.Model
		err error
	)
	if c.Bool(flagRegularized) {
		m, err = polynomial.NewRegularizedModel(degree, polynomial.WithRegularization(c.Float64(flagAlpha)))
	} else {
		m, err = polynomial.NewModel(degree)
	}
	if err != nil {
		return err
	}
	if err := m.Fit(X, y); err != nil {
		return err
	}

	report := func(name string, X, y []float64) error {
		pred, err := m.Predict(X)
		if err != nil {
			return err
		}
		mse, err := metrics.MSE(vec(y), vec(pred))
		if err != nil {
			return err
		}
		r2, err := m.Score(X, y)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-5s n=%-4d MSE=%.4f R2=%.4f\n", name, len(X), mse, r2)
		return nil
	}
	if err := report("train", X, y); err != nil {
		return err
	}
	if len(XTest) > 0 {
		if err := report("test", XTest, yTest); err != nil {
			return err
		}
	}

	title := fmt.Sprintf("degree %d", degree)
	if m.Regularized() {
		title += fmt.Sprintf(", ridge alpha=%g", c.Float64(flagAlpha))
	}
	p, err := polynomial.VisualizeModel(X, y,
		polynomial.WithModel(m),
		polynomial.WithTrueFunction(polynomial.TrueFunction),
		polynomial.WithTitle(title),
	)
	if err != nil {
		return err
	}
	path := c.String(flagOut)
	if err := polynomial.SavePlot(p, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "plot written to %s\n", path)

	if c.Bool(flagWeights) {
		w, err := m.Weights()
		if err != nil {
			return err
		}
		data, err := w.ToJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}

func digitsAction(c *cli.Context) error {
	out := c.App.Writer

	var dataOpts []imagedata.Option
	var clfOpts []classifiers.Option
	if c.IsSet(flagSeed) {
		seed := c.Int64(flagSeed)
		dataOpts = append(dataOpts, imagedata.WithRandomState(seed))
		clfOpts = append(clfOpts, classifiers.WithRandomState(seed))
	}
	dataOpts = append(dataOpts, imagedata.WithResolution(c.Int(flagResolution)))
	if path := c.Path(flagDigitsFile); path != "" {
		dataOpts = append(dataOpts, imagedata.WithDigitsFile(path))
	}
	if c.IsSet(flagRegularization) {
		clfOpts = append(clfOpts, classifiers.WithRegularization(c.Float64(flagRegularization)))
	}

	data, err := imagedata.Load(dataOpts...)
	if err != nil {
		return err
	}

	var clf classifiers.Classifier
	switch name := c.String(flagClassifier); name {
	case classifierPoly:
		clf, err = classifiers.NewPolynomialClassifier(c.Int(flagDegree), clfOpts...)
	case classifierNN:
		clf, err = classifiers.NewNeuralNetworkClassifier(c.IntSlice(flagHidden), clfOpts...)
	default:
		err = errors.NewValidationError(flagClassifier, "must be poly or nn", name)
	}
	if err != nil {
		return err
	}

	if err := clf.Train(data.XTrain, data.YTrain); err != nil {
		return err
	}
	fmt.Fprintf(out, "trained %s on %d images, testing on %d\n",
		c.String(flagClassifier), len(data.XTrain), len(data.XTest))

	for _, split := range []struct {
		name string
		X    []mat.Matrix
		y    []int
	}{
		{"train", data.XTrain, data.YTrain},
		{"test", data.XTest, data.YTest},
	} {
		acc, err := clf.Accuracy(split.X, split.y)
		if err != nil {
			return err
		}
		loss, err := clf.Error(split.X, split.y)
		if err != nil {
			// テスト側にだけ現れるクラスがあると log loss は定義できない
			fmt.Fprintf(out, "%-5s accuracy=%.4f error=n/a (%v)\n", split.name, acc, err)
			continue
		}
		fmt.Fprintf(out, "%-5s accuracy=%.4f error=%.4f\n", split.name, acc, loss)
	}

	if path := c.String(flagPlotSample); path != "" {
		log.GetLoggerWithName("cli").Debug("Writing sample image", "path", path, "label", data.YTrain[0])
		if err := imagedata.SaveImage(data.XTrain[0], data.YTrain[0], path); err != nil {
			return err
		}
		fmt.Fprintf(out, "sample image written to %s\n", path)
	}
	return nil
}

func vec(v []float64) *mat.VecDense {
	return mat.NewVecDense(len(v), append([]float64(nil), v...))
}
