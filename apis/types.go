package apis

type RuneTermsJSON struct {
	Amount      *string `json:"amount"`
	Cap         *string `json:"cap"`
	HeightStart *uint64 `json:"heightStart"`
	HeightEnd   *uint64 `json:"heightEnd"`
	OffsetStart *uint64 `json:"offsetStart"`
	OffsetEnd   *uint64 `json:"offsetEnd"`
}

type RuneEntryJSON struct {
	Id           string         `json:"id"`
	Name         string         `json:"name"`
	Symbol       string         `json:"symbol"`
	Divisibility uint8          `json:"divisibility"`
	EtchingTxid  string         `json:"etchingTxid"`
	Height       uint64         `json:"height"`
	Number       uint64         `json:"number"`
	Timestamp    uint64         `json:"timestamp"`
	Premine      string         `json:"premine"`
	Mints        string         `json:"mints"`
	Burned       string         `json:"burned"`
	Supply       string         `json:"supply"`
	Mintable     bool           `json:"mintable"`
	Terms        *RuneTermsJSON `json:"terms"`
	Turbo        bool           `json:"turbo"`
}

type RunesEntryResponse struct {
	Error      *string        `json:"error"`
	Result     *RuneEntryJSON `json:"result"`
	Commitment *string        `json:"commitment"`
}

type RunesEntriesResult struct {
	Entries []RuneEntryJSON `json:"entries"`
	Page    uint            `json:"page"`
	More    bool            `json:"more"`
	Total   uint64          `json:"total"`
}

type RunesEntriesResponse struct {
	Error      *string             `json:"error"`
	Result     *RunesEntriesResult `json:"result"`
	Commitment *string             `json:"commitment"`
}

type OutpointBalanceJSON struct {
	RuneId       string `json:"runeId"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Divisibility uint8  `json:"divisibility"`
	Amount       string `json:"amount"`
}

type RunesBalancesResult struct {
	Outpoint string                `json:"outpoint"`
	Balances []OutpointBalanceJSON `json:"balances"`
}

type RunesBalancesResponse struct {
	Error      *string              `json:"error"`
	Result     *RunesBalancesResult `json:"result"`
	Commitment *string              `json:"commitment"`
}

type ChainTipResult struct {
	Height     uint   `json:"height"`
	Hash       string `json:"hash"`
	Commitment string `json:"commitment"`
}

type ChainTipResponse struct {
	Error  *string         `json:"error"`
	Result *ChainTipResult `json:"result"`
}

type SetRpcEndpointRequest struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}
