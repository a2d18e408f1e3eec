package enums

// CollectionStatus tracks cash collection progress on a COD payment.
type CollectionStatus string

const (
	CollectionNotCollected     CollectionStatus = "not_collected"
	CollectionPartialCollected CollectionStatus = "partial_collected"
	CollectionCollected        CollectionStatus = "collected"
	CollectionFailed           CollectionStatus = "failed_collection"
)

var validCollectionStatuses = []CollectionStatus{
	CollectionNotCollected,
	CollectionPartialCollected,
	CollectionCollected,
	CollectionFailed,
}

func (c CollectionStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CollectionStatus.
func (c CollectionStatus) IsValid() bool {
	return isOneOf(c, validCollectionStatuses)
}

// CollectionIssue is a reason a delivery person could not collect cash.
type CollectionIssue string

const (
	IssueCustomerNotAvailable CollectionIssue = "customer_not_available"
	IssueCustomerRefused      CollectionIssue = "customer_refused"
	IssueAddressIncorrect     CollectionIssue = "address_incorrect"
	IssueInsufficientCash     CollectionIssue = "insufficient_cash"
	IssueOther                CollectionIssue = "other"
)

var validCollectionIssues = []CollectionIssue{
	IssueCustomerNotAvailable,
	IssueCustomerRefused,
	IssueAddressIncorrect,
	IssueInsufficientCash,
	IssueOther,
}

func (c CollectionIssue) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CollectionIssue.
func (c CollectionIssue) IsValid() bool {
	return isOneOf(c, validCollectionIssues)
}

// ParseCollectionIssue converts raw input into a CollectionIssue.
func ParseCollectionIssue(value string) (CollectionIssue, error) {
	return parseOneOf(value, validCollectionIssues, "collection issue")
}
