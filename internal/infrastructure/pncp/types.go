package pncp

// publicationResponse is the paginated envelope of the PNCP consultation API.
type publicationResponse struct {
	Data             []publicationRecord `json:"data"`
	TotalRegistros   int                 `json:"totalRegistros"`
	TotalPaginas     int                 `json:"totalPaginas"`
	NumeroPagina     int                 `json:"numeroPagina"`
	PaginasRestantes int                 `json:"paginasRestantes"`
	Empty            bool                `json:"empty"`
}

type publicationRecord struct {
	NumeroControlePNCP  string  `json:"numeroControlePNCP"`
	ObjetoCompra        string  `json:"objetoCompra"`
	ValorTotalEstimado  float64 `json:"valorTotalEstimado"`
	AnoCompra           int     `json:"anoCompra"`
	SequencialCompra    int     `json:"sequencialCompra"`
	ModalidadeID        int     `json:"modalidadeId"`
	DataPublicacaoPNCP  string  `json:"dataPublicacaoPncp"`
	LinkSistemaOrigem   string  `json:"linkSistemaOrigem"`

	OrgaoEntidade struct {
		CNPJ        string `json:"cnpj"`
		RazaoSocial string `json:"razaoSocial"`
	} `json:"orgaoEntidade"`

	UnidadeOrgao struct {
		UFSigla       string `json:"ufSigla"`
		MunicipioNome string `json:"municipioNome"`
	} `json:"unidadeOrgao"`
}

type itemRecord struct {
	NumeroItem             int     `json:"numeroItem"`
	Descricao              string  `json:"descricao"`
	Quantidade             float64 `json:"quantidade"`
	UnidadeMedida          string  `json:"unidadeMedida"`
	ValorUnitarioEstimado  float64 `json:"valorUnitarioEstimado"`
}
