package constants

const (
	ViewData         = "view_data"
	ProvisionStudent = "provision_student"
	RequestClaim     = "request_claim"
	SubmitCredit     = "submit_credit"
	ApproveAsPOC     = "approve_as_poc"
	ApproveAsAdmin   = "approve_as_admin"
	ViewQueuePOC     = "view_queue_poc"
	ViewQueueAdmin   = "view_queue_admin"
	FinalizeClaim    = "finalize_claim"
)
