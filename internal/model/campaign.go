// internal/model/campaign.go
package model

import "time"

type CampaignKind string

const (
	KindWelcome CampaignKind = "welcome"
	KindRecall  CampaignKind = "recall"
	KindRemind  CampaignKind = "remind"
)

// CampaignRequest is implemented by WelcomeRequest, RecallRequest and
// RemindRequest only.
type CampaignRequest interface {
	CampaignID() string
	Kind() CampaignKind
	// Window returns the user_stats column the campaign filters on and the
	// look-back in days.
	Window() (field string, days uint32)
	Contents() []int64
	isCampaignRequest()
}

type WelcomeRequest struct {
	ID           string  `json:"id"`
	IntervalDays uint32  `json:"interval"`
	ContentIDs   []int64 `json:"content_ids"`
}

type RecallRequest struct {
	ID                    string  `json:"id"`
	LastVisitIntervalDays uint32  `json:"last_visit_interval"`
	ContentIDs            []int64 `json:"content_ids"`
}

type RemindRequest struct {
	ID                    string `json:"id"`
	LastVisitIntervalDays uint32 `json:"last_visit_interval"`
}

func (r *WelcomeRequest) CampaignID() string       { return r.ID }
func (r *WelcomeRequest) Kind() CampaignKind       { return KindWelcome }
func (r *WelcomeRequest) Window() (string, uint32) { return "created_at", r.IntervalDays }
func (r *WelcomeRequest) Contents() []int64        { return r.ContentIDs }
func (*WelcomeRequest) isCampaignRequest()         {}

func (r *RecallRequest) CampaignID() string       { return r.ID }
func (r *RecallRequest) Kind() CampaignKind       { return KindRecall }
func (r *RecallRequest) Window() (string, uint32) { return "last_visited_at", r.LastVisitIntervalDays }
func (r *RecallRequest) Contents() []int64        { return r.ContentIDs }
func (*RecallRequest) isCampaignRequest()         {}

func (r *RemindRequest) CampaignID() string       { return r.ID }
func (r *RemindRequest) Kind() CampaignKind       { return KindRemind }
func (r *RemindRequest) Window() (string, uint32) { return "last_visited_at", r.LastVisitIntervalDays }
func (r *RemindRequest) Contents() []int64        { return nil }
func (*RemindRequest) isCampaignRequest()         {}

type CampaignResponse struct {
	ID string `json:"id"`
}

// RunState is the lifecycle of one fan-out.
type RunState string

const (
	StateStart       RunState = "start"
	StateQueryIssued RunState = "query_issued"
	StateStreaming   RunState = "streaming"
	StateDraining    RunState = "draining"
	StateCompleted   RunState = "completed"
	StateAborted     RunState = "aborted"
)

func (s RunState) Terminal() bool { return s == StateCompleted || s == StateAborted }

// CampaignRun records the progress of one campaign call.
type CampaignRun struct {
	ID        string       `db:"id" json:"id"`
	Kind      CampaignKind `db:"kind" json:"kind"`
	State     RunState     `db:"state" json:"state"`
	Produced  int          `db:"produced" json:"produced"`
	Dropped   int          `db:"dropped" json:"dropped"`
	Acked     int          `db:"acked" json:"acked"`
	Failed    int          `db:"failed" json:"failed"`
	Error     string       `db:"error" json:"error,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}
