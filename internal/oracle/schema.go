package oracle

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"cryptomind/internal/pkg/jsonutil"
)

const decisionSchema = `{
  "type": "object",
  "properties": {
    "decision":   {"type": "string", "enum": ["BUY", "SELL", "HOLD"]},
    "amountUSD":  {"type": "number", "minimum": 0},
    "reason":     {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 100}
  },
  "required": ["decision", "amountUSD", "reason", "confidence"]
}`

func compileDecisionSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decision.json", strings.NewReader(decisionSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("decision.json")
}

// DecisionParser 把模型的文本输出解析为 Decision。
type DecisionParser struct {
	schema *jsonschema.Schema
}

func NewDecisionParser() (*DecisionParser, error) {
	schema, err := compileDecisionSchema()
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}
	return &DecisionParser{schema: schema}, nil
}

// Parse 提取 JSON 对象，校验结构后解码。任何失败都包装 ErrOracleFailure。
func (p *DecisionParser) Parse(raw string) (Decision, error) {
	obj, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return Decision{}, failure("no json object in response")
	}
	if !gjson.Valid(obj) {
		return Decision{}, failure("invalid json")
	}
	parsed := gjson.Parse(obj)
	if !parsed.IsObject() {
		return Decision{}, failure("root must be a json object")
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return Decision{}, failure("decode: %v", err)
	}
	// 模型偶尔返回小写动作
	if s, ok := doc["decision"].(string); ok {
		doc["decision"] = strings.ToUpper(strings.TrimSpace(s))
	}
	if err := p.schema.Validate(doc); err != nil {
		return Decision{}, failure("schema: %v", err)
	}

	action, _ := ParseAction(parsed.Get("decision").String())
	d := Decision{
		Action:     action,
		AmountUSD:  parsed.Get("amountUSD").Float(),
		Reason:     strings.TrimSpace(parsed.Get("reason").String()),
		Confidence: int(math.Round(parsed.Get("confidence").Float())),
	}
	if d.Action == ActionHold {
		d.AmountUSD = 0
	}
	return d, nil
}
