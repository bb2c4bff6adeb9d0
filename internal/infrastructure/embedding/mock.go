package embedding

import (
	"context"
	"math"
)

// mockCategories maps sector buckets to keywords. The mock vectorizer scores
// a text by counting keyword hits per bucket, which is enough for demos and
// tests to produce plausible sector-aligned matches without any model.
var mockCategories = []struct {
	name     string
	keywords []string
}{
	{"informatica", []string{"computador", "software", "sistema", "tecnologia", "informacao", "rede", "servidor", "notebook", "impressora"}},
	{"construcao", []string{"obra", "construcao", "reforma", "pavimentacao", "engenharia", "edificacao", "pintura"}},
	{"saude", []string{"medicamento", "hospitalar", "medico", "enfermagem", "saude", "ambulancia", "laboratorio"}},
	{"alimentacao", []string{"alimento", "merenda", "refeicao", "alimentacao", "cozinha", "genero"}},
	{"servicos", []string{"limpeza", "vigilancia", "manutencao", "conservacao", "transporte", "locacao", "consultoria"}},
	{"educacao", []string{"escolar", "educacao", "ensino", "didatico", "pedagogico", "livro"}},
	{"seguranca", []string{"seguranca", "monitoramento", "camera", "alarme", "televisao", "circuito"}},
}

// MockVectorizer is a deterministic keyword-bucket embedder used in demos
// and offline development.
type MockVectorizer struct{}

func NewMockVectorizer() *MockVectorizer {
	return &MockVectorizer{}
}

func (v *MockVectorizer) ID() string {
	return "mock/keywords-v1"
}

func (v *MockVectorizer) Dimensions() int {
	return len(mockCategories)
}

func (v *MockVectorizer) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, len(mockCategories))

	tokens := Tokens(text)
	if len(tokens) == 0 {
		return vec, nil
	}

	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = struct{}{}
	}

	var hits float64
	for i, cat := range mockCategories {
		for _, kw := range cat.keywords {
			if _, ok := tokenSet[kw]; ok {
				vec[i]++
				hits++
			}
		}
	}
	if hits == 0 {
		return vec, nil
	}

	var norm float64
	for _, f := range vec {
		norm += f * f
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}

	return vec, nil
}

func (v *MockVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec, err := v.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
