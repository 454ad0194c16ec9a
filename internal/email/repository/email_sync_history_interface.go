package repository

// EmailSyncHistoryRepository tracks which emails are already in the
// semantic index.
type EmailSyncHistoryRepository interface {
	IsEmailSynced(accountID, emailID string) (bool, error)
	// EnsureEmailSynced marks the email as synced and reports whether it
	// already was.
	EnsureEmailSynced(accountID, emailID string) (bool, error)
	DeleteSyncHistory(accountID, emailID string) error
}
