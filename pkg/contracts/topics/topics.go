package topics

const (
	// Kafka
	DepositInitiated = "deposit_initiated"
	DepositApproved  = "deposit_approved"

	// Redis Pub/Sub
	DepositUpdatesChannel = "deposit_updates"
)
