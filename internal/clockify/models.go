package clockify

import "time"

type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	ActiveWorkspace  string `json:"activeWorkspace"`
	DefaultWorkspace string `json:"defaultWorkspace"`
}

// Project is a Clockify project. Each project is one matter.
type Project struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Archived   bool   `json:"archived"`
	Color      string `json:"color"`
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
}

type TimeEntryRequest struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	ProjectID   string `json:"projectId"`
	Description string `json:"description"`
	Billable    bool   `json:"billable"`
}

type TimeEntry struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	ProjectID    string `json:"projectId"`
	TimeInterval struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"timeInterval"`
}

// FormatTime renders t the way the time-entries endpoint expects.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
