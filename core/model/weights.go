package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/mlsandbox/pkg/errors"
)

// WeightsVersion は ModelWeights のフォーマットバージョン
const WeightsVersion = "1.0.0"

// ModelWeights は学習済み線形モデルの重みを表す構造体（書き出し専用）
type ModelWeights struct {
	// ModelType はモデルの種類（LinearRegression, Ridge）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン
	Version string `json:"version"`

	// Coefficients は重み係数
	Coefficients []float64 `json:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// Features は特徴量の名前（例: "x0^2"）
	Features []string `json:"features,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は追加のメタデータ（学習時のサンプル数等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewModelWeights は係数をコピーしてModelWeightsを作成
func NewModelWeights(modelType string, coef []float64, intercept float64) *ModelWeights {
	c := make([]float64, len(coef))
	copy(c, coef)
	return &ModelWeights{
		ModelType:       modelType,
		Version:         WeightsVersion,
		Coefficients:    c,
		Intercept:       intercept,
		Hyperparameters: make(map[string]interface{}),
		Metadata:        make(map[string]interface{}),
	}
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(mw, "", "  ")
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", len(mw.Coefficients))
	}
	if len(mw.Features) > 0 && len(mw.Features) != len(mw.Coefficients) {
		return errors.NewValidationError("features", "must name every coefficient", len(mw.Features))
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := NewModelWeights(mw.ModelType, mw.Coefficients, mw.Intercept)
	clone.Version = mw.Version
	if mw.Features != nil {
		clone.Features = append([]string(nil), mw.Features...)
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
