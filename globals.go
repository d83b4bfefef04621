package main

type Config struct {
	// Source selects where blocks come from: "bitcoind" for a node
	// reachable over JSON-RPC, "postgres" for a mirror database.
	Source   string `json:"source"`
	Database struct {
		Host     string `json:"host"`
		User     string `json:"user"`
		Password string `json:"password"`
		DBname   string `json:"dbname"`
		Port     string `json:"port"`
	} `json:"database"`
	BitcoinRPC struct {
		URL      string `json:"url"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"bitcoinRPC"`
	Report struct {
		Method string `json:"method"`
		S3     struct {
			Bucket    string `json:"bucket"`
			AccessKey string `json:"accessKey"`
			SecretKey string `json:"secretKey"`
			Region    string `json:"region"`
		} `json:"s3"`
		Da struct {
			// Gateway submission.
			PrivateKey  string `json:"privateKey"`
			GasCoupon   string `json:"gasCoupon"`
			Network     string `json:"network"`
			NamespaceID string `json:"namespaceID"`
			// Local node submission.
			NodeRPC       string `json:"nodeRpc"`
			AuthToken     string `json:"authToken"`
			FetchTimeout  string `json:"fetchTimeout"`
			SubmitTimeout string `json:"submitTimeout"`
		} `json:"da"`
		// Timeout bounds one upload, in milliseconds.
		Timeout int `json:"timeout"`
	} `json:"report"`
	Service struct {
		URL          string `json:"url"`
		Name         string `json:"name"`
		MetaProtocol string `json:"metaProtocol"`
		ListenAddr   string `json:"listenAddr"`
	} `json:"service"`
	// ReorgDepth is how many trailing blocks stay undoable. Zero
	// falls back to index.DefaultConfirmations.
	ReorgDepth uint `json:"reorgDepth"`
}

var GlobalConfig Config
