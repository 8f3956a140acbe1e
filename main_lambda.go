//go:build lambda

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

type lambdaState struct {
	cfg    Config
	data   *RelationData
	scorer *Scorer
	logger *zap.Logger
}

// loadState reads config and relation data once per container.
var loadState = sync.OnceValues(func() (*lambdaState, error) {
	cfg, err := LoadConfig("")
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, err
	}
	data, err := LoadRelationData(cfg.Members, cfg.Values, cfg.Characters)
	if err != nil {
		return nil, err
	}
	return &lambdaState{cfg: cfg, data: data, scorer: NewScorer(data.Index()), logger: logger}, nil
})

type optimizeResult struct {
	Found   bool    `json:"found"`
	Lineage Lineage `json:"lineage"`
	Score   int     `json:"score"`
	TimeMs  int64   `json:"timeMs"`
	Detail  string  `json:"detail"`
}

// handler expects {"lineage": [child, p1, p2, gp1, gp2, gp3, gp4], "pool": [...]}
// with null for unpinned slots. pool defaults to the released characters.
func handler(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(400, "invalid base64 body")
		}
		body = string(decoded)
	}
	if !gjson.Valid(body) {
		return errResp(400, "invalid JSON")
	}

	lineageField := gjson.Get(body, "lineage")
	if !lineageField.IsArray() {
		return errResp(400, "missing lineage field")
	}
	req := Request(readIDList(lineageField))

	st, err := loadState()
	if err != nil {
		return errResp(500, "load data: "+err.Error())
	}
	pool := st.data.Pool()
	if p := gjson.Get(body, "pool"); p.IsArray() {
		pool = readIDList(p)
	}

	start := time.Now()
	opt := NewOptimizer(st.scorer, st.cfg, st.logger)
	res, err := opt.Optimize(ctx, req, pool)
	if err != nil {
		return errResp(503, "search cancelled: "+err.Error())
	}

	resp := optimizeResult{TimeMs: time.Since(start).Milliseconds()}
	if res != nil {
		resp.Found = true
		resp.Lineage = res.Lineage
		resp.Score = res.Score
		resp.Detail = FormatLineage(CalcLineageDetail(st.scorer, res.Lineage), st.data.Names())
	}
	respJSON, _ := json.Marshal(resp)
	return events.LambdaFunctionURLResponse{StatusCode: 200, Headers: jsonHeader, Body: string(respJSON)}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

func main() {
	lambda.Start(handler)
}
