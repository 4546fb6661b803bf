// Package tier 定义了订阅等级及其每月 token 上限表。
//
// 该表仅为声明式配置：用于用量报表与 QuotaChecker，请求路径上不做强制拦截。
package tier

// Tier 是用户的订阅等级。
type Tier string

const (
	Free       Tier = "free"
	Starter    Tier = "starter"
	Pro        Tier = "pro"
	Enterprise Tier = "enterprise"
)

// 模型别名，与聊天请求中的 model 字段一致。
const (
	ModelHaiku  = "haiku"
	ModelSonnet = "sonnet"
	ModelOpus   = "opus"
)

// Limits 是某个等级下每个模型的每月 token 上限。
type Limits map[string]int64

// 按等级从低到高排列
var ordered = []Tier{Free, Starter, Pro, Enterprise}

var table = map[Tier]Limits{
	Free: {
		ModelHaiku:  25_000,
		ModelSonnet: 0,
		ModelOpus:   0,
	},
	Starter: {
		ModelHaiku:  100_000,
		ModelSonnet: 50_000,
		ModelOpus:   0,
	},
	Pro: {
		ModelHaiku:  500_000,
		ModelSonnet: 250_000,
		ModelOpus:   100_000,
	},
	Enterprise: {
		ModelHaiku:  2_000_000,
		ModelSonnet: 1_000_000,
		ModelOpus:   500_000,
	},
}

// Validate 报告 t 是否为已知等级。
func Validate(t Tier) bool {
	_, ok := table[t]
	return ok
}

// LimitsFor 返回等级 t 的上限副本，未知等级回退到 free。
func LimitsFor(t Tier) Limits {
	src, ok := table[t]
	if !ok {
		src = table[Free]
	}
	out := make(Limits, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// ModelLimit 返回等级 t 下模型 model 的每月上限，未知模型返回 0。
func ModelLimit(t Tier, model string) int64 {
	return LimitsFor(t)[model]
}

// All 返回所有等级，按从低到高排列。
func All() []Tier {
	out := make([]Tier, len(ordered))
	copy(out, ordered)
	return out
}

// Models 返回表中出现的模型别名。
func Models() []string {
	return []string{ModelHaiku, ModelSonnet, ModelOpus}
}
