package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"pulsetrader/internal/backtest"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// StrategyConfig 描述一个策略实例：独立资金、独立持仓。
type StrategyConfig struct {
	Name              string         `json:"-"`
	Strategy          string         `json:"strategy"`
	Symbols           []string       `json:"symbols"`
	CapitalAllocation float64        `json:"capital_allocation"`
	Params            map[string]any `json:"params,omitempty"`
	Window            int            `json:"window,omitempty"`
	LotSize           int64          `json:"lot_size,omitempty"`
}

// Config 是多策略组合的完整配置。
// 各策略的 capital_allocation 不要求和为 1，允许超配或欠配。
type Config struct {
	TotalCapital   float64                   `json:"total_capital"`
	CommissionRate float64                   `json:"commission_rate"`
	SlippageRate   float64                   `json:"slippage_rate"`
	MinCommission  float64                   `json:"min_commission"`
	Strategies     map[string]StrategyConfig `json:"strategies"`
}

// Costs 返回组合级成本模型。
func (c Config) Costs() backtest.CostModel {
	return backtest.CostModel{
		CommissionRate: c.CommissionRate,
		SlippageRate:   c.SlippageRate,
		MinCommission:  c.MinCommission,
	}
}

const defaultStrategyWindow = 120

// 组合持仓以 100 股为一手。
const DefaultPortfolioLot = int64(100)

const configSchemaJSON = `{
  "type": "object",
  "required": ["total_capital", "strategies"],
  "properties": {
    "total_capital": {"type": "number", "exclusiveMinimum": 0},
    "commission_rate": {"type": "number", "minimum": 0},
    "slippage_rate": {"type": "number", "minimum": 0},
    "min_commission": {"type": "number", "minimum": 0},
    "strategies": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["strategy", "symbols", "capital_allocation"],
        "properties": {
          "strategy": {"type": "string", "minLength": 1},
          "symbols": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
          "capital_allocation": {"type": "number", "exclusiveMinimum": 0},
          "params": {"type": "object"},
          "window": {"type": "integer", "minimum": 0},
          "lot_size": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

var configSchema = jsonschema.MustCompileString("portfolio.json", configSchemaJSON)

// LoadConfig 读取并校验组合配置文件（JSON）。
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("读取组合配置失败: %w", err)
	}
	return ParseConfig(raw)
}

// ParseConfig 先过 JSON Schema，再做结构化解析与归一化。
func ParseConfig(raw []byte) (Config, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("组合配置不是合法 JSON: %w", err)
	}
	if err := configSchema.Validate(doc); err != nil {
		return Config{}, fmt.Errorf("组合配置校验失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.CommissionRate <= 0 {
		cfg.CommissionRate = backtest.DefaultCommissionRate
	}
	if cfg.SlippageRate <= 0 {
		cfg.SlippageRate = backtest.DefaultSlippageRate
	}
	if cfg.MinCommission <= 0 {
		cfg.MinCommission = backtest.DefaultMinCommission
	}

	normalized := make(map[string]StrategyConfig, len(cfg.Strategies))
	for name, sc := range cfg.Strategies {
		sc.Name = name
		sc.Symbols = normalizeSymbols(sc.Symbols)
		if len(sc.Symbols) == 0 {
			return Config{}, fmt.Errorf("策略 %s 没有有效 symbol", name)
		}
		if sc.Window <= 0 {
			sc.Window = defaultStrategyWindow
		}
		if sc.LotSize <= 0 {
			sc.LotSize = DefaultPortfolioLot
		}
		sc.Params = coerceParams(raw, name)
		normalized[name] = sc
	}
	cfg.Strategies = normalized
	return cfg, nil
}

// coerceParams 宽松读取策略参数：数字写成字符串（"20"）也接受。
func coerceParams(raw []byte, name string) map[string]any {
	params := gjson.GetBytes(raw, "strategies."+name+".params")
	if !params.Exists() || !params.IsObject() {
		return nil
	}
	out := make(map[string]any)
	params.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.Number:
			out[key.String()] = value.Float()
		case gjson.String:
			if num := value.Float(); num != 0 || strings.TrimSpace(value.String()) == "0" {
				out[key.String()] = num
			} else {
				out[key.String()] = value.String()
			}
		case gjson.True, gjson.False:
			out[key.String()] = value.Bool()
		default:
			out[key.String()] = value.Value()
		}
		return true
	})
	return out
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, sym := range in {
		s := strings.ToUpper(strings.TrimSpace(sym))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
