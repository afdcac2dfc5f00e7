package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// digitsFileColumns is 64 pixels followed by the label.
const digitsFileColumns = DigitsRows*DigitsCols + 1

// LoadDigitsFile reads a digits dataset in the layout of scikit-learn's
// digits.csv.gz (the UCI optdigits test set): one sample per line with 64
// comma-separated pixel values in [0, 16] followed by the label 0..9.
// Files ending in ".gz" are decompressed.
func LoadDigitsFile(path string) (*Digits, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "LoadDigitsFile: open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "LoadDigitsFile: %s is not gzip", path)
		}
		defer gz.Close()
		r = gz
	}
	return ReadDigits(r)
}

// ReadDigits parses digits CSV records from r. See LoadDigitsFile.
func ReadDigits(r io.Reader) (*Digits, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = digitsFileColumns
	cr.ReuseRecord = true

	d := &Digits{TargetNames: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}}
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "ReadDigits")
		}

		pixels := make([]float64, DigitsRows*DigitsCols)
		for j := range pixels {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[j]), 64)
			if err != nil || v < 0 || v > DigitsMaxIntensity {
				return nil, errors.NewValueError("ReadDigits",
					fmt.Sprintf("line %d column %d: pixel %q is not in [0, %d]", line, j+1, record[j], DigitsMaxIntensity))
			}
			pixels[j] = v
		}
		label, err := strconv.Atoi(strings.TrimSpace(record[digitsFileColumns-1]))
		if err != nil || label < 0 || label > 9 {
			return nil, errors.NewValueError("ReadDigits",
				fmt.Sprintf("line %d: label %q is not a digit", line, record[digitsFileColumns-1]))
		}

		d.Images = append(d.Images, mat.NewDense(DigitsRows, DigitsCols, pixels))
		d.Target = append(d.Target, label)
	}
	if len(d.Images) == 0 {
		return nil, errors.NewModelError("ReadDigits", "empty data", errors.ErrEmptyData)
	}
	return d, nil
}
