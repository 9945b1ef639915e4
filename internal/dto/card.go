package dto

import (
	"recurring-card/pkg/utils"
	"time"
)

// Card is the subset of a board card the reconciler cares about.
type Card struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Desc      string     `json:"desc"`
	IDList    string     `json:"idList"`
	IDBoard   string     `json:"idBoard"`
	Closed    bool       `json:"closed"`
	Due       *time.Time `json:"due"`
	URL       string     `json:"url"`
	IDMembers []string   `json:"idMembers"`
	IDLabels  []string   `json:"idLabels"`
}

// IsTerminal reports whether the card is archived or sits in one of the done lists.
func (c Card) IsTerminal(doneListIDs []string) bool {
	return c.Closed || utils.ContainsString(doneListIDs, c.IDList)
}

type CardSpec struct {
	Title       string
	Description string
	Due         time.Time
	Assignees   []string
	Labels      []string
	Checklist   []string
}

type BoardMember struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

type Checklist struct {
	ID     string `json:"id"`
	IDCard string `json:"idCard"`
	Name   string `json:"name"`
}

// BoardSettings is the immutable board configuration passed into each reconciliation.
type BoardSettings struct {
	BoardID     string   `json:"board_id" validate:"required"`
	ListID      string   `json:"list_id" validate:"required"`
	DoneListIDs []string `json:"done_list_ids" validate:"dive,required"`
}

type CycleSummary struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Blocked   int `json:"blocked"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type RunScheduleResponse struct {
	ScheduleID uint   `json:"schedule_id"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	Card       *Card  `json:"card,omitempty"`
}
