package kb

import "math"

// EstimateEmbeddingCost 按空白分词的词数估算 embedding 成本。
// 词数只是计费 token 的近似值，够用于创建索引前的预估；
// 结果保留 4 位小数用于货币展示。纯函数，无副作用。
func EstimateEmbeddingCost(chunks []Chunk, costPerToken float64) float64 {
	totalTokens := 0
	for _, c := range chunks {
		totalTokens += c.Words
	}
	return math.Round(float64(totalTokens)*costPerToken*10000) / 10000
}
