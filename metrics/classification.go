package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// LogLossEpsilon は確率のクリップに使う下限（float64のマシンイプシロン）
const LogLossEpsilon = 2.220446049250313e-16

func checkLabels(op string, yTrue, yPred []int) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty label slice")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// Accuracy は予測ラベルが正解と一致する割合を [0, 1] で返す
func Accuracy(yTrue, yPred []int) (float64, error) {
	if err := checkLabels("Accuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	correct := 0
	for i, y := range yTrue {
		if y == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ClassificationError は誤分類率（1 - Accuracy）を返す
func ClassificationError(yTrue, yPred []int) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// LogLoss は交差エントロピー損失（負の対数尤度の平均）を計算する
//
// proba の列は classes の順序に対応する。二値分類では陽性クラス（classes[1]）の
// 確率だけを持つ n×1 行列も受け付ける。確率は [eps, 1-eps] にクリップした後、
// 行ごとに合計1へ正規化される。yTrue に classes にないラベルが含まれる場合は
// ValueError を返す。
func LogLoss(yTrue []int, proba mat.Matrix, classes []int) (float64, error) {
	n, c := proba.Dims()
	if len(yTrue) == 0 || n == 0 {
		return 0, errors.NewValueError("LogLoss", "empty input")
	}
	if n != len(yTrue) {
		return 0, errors.NewDimensionError("LogLoss", len(yTrue), n, 0)
	}
	if len(classes) < 2 {
		return 0, errors.NewValueError("LogLoss",
			fmt.Sprintf("at least two classes are required, got %d", len(classes)))
	}

	binaryColumn := c == 1 && len(classes) == 2
	if c != len(classes) && !binaryColumn {
		return 0, errors.NewDimensionError("LogLoss", len(classes), c, 1)
	}

	index := make(map[int]int, len(classes))
	for j, cls := range classes {
		index[cls] = j
	}

	row := make([]float64, len(classes))
	var total float64
	for i, y := range yTrue {
		j, ok := index[y]
		if !ok {
			return 0, errors.NewValueError("LogLoss",
				fmt.Sprintf("y contains label %d not seen in classes %v", y, classes))
		}
		if binaryColumn {
			p := proba.At(i, 0)
			row[0], row[1] = 1-p, p
		} else {
			mat.Row(row, i, proba)
		}
		for k := range row {
			row[k] = errors.ClipValue(row[k], LogLossEpsilon, 1-LogLossEpsilon)
		}
		total -= math.Log(row[j] / floats.Sum(row))
	}

	loss := total / float64(n)
	if err := errors.CheckScalar("LogLoss", loss, 0); err != nil {
		return 0, err
	}
	return loss, nil
}
