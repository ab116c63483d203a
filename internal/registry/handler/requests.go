package handler

// RegisterBatchRequest is the JSON body for POST /registry/batches. The hash
// is hex encoded; numeric fields that must be positive are accepted signed so
// out-of-domain values reach the validator and get their proper code.
type RegisterBatchRequest struct {
	Hash        string `json:"hash"`
	Origin      string `json:"origin"`
	CertID      int64  `json:"cert_id"`
	ProductType string `json:"product_type"`
	Quantity    int64  `json:"quantity"`
	Location    string `json:"location"`
	Currency    string `json:"currency"`
	Expiry      uint64 `json:"expiry"`
	Owner       string `json:"owner"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
}

// UpdateBatchRequest is the JSON body for PUT /registry/batches/{id}.
type UpdateBatchRequest struct {
	UpdateHash     string `json:"update_hash"`
	UpdateQuantity int64  `json:"update_quantity"`
}

// SetAuthorityRequest is the JSON body for POST /registry/authority.
type SetAuthorityRequest struct {
	Principal string `json:"principal"`
}

// SetFeeRequest is the JSON body for POST /registry/fee.
type SetFeeRequest struct {
	Fee uint64 `json:"fee"`
}
