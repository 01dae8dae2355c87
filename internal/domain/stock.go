package domain

// AttributePool is one independently tracked stock count for a specific
// variant attribute of a product. A product either has pools or a single
// whole-product counter, never a mix per item.
type AttributePool struct {
	ID             int64  `json:"id"`
	ProductID      int64  `json:"product_id"`
	AttributeName  string `json:"attribute_name"`
	AttributeValue string `json:"attribute_value"`
	Quantity       int    `json:"quantity"`
}

// ReconciliationFailure records one line item the reconciler could not apply.
// The payment side already succeeded, so these are logged for manual
// correction instead of failing the request.
type ReconciliationFailure struct {
	OrderID   int64
	ProductID int64
	Reason    string
}
