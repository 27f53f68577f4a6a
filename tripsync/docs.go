// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"encoding/json"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

// Remote document field names. These are the wire contract with the document
// server and with other devices; see the users/{u}/trips layout.
const (
	fieldTitle       = "title"
	fieldDestination = "destination"
	fieldStartDate   = "startDate"
	fieldEndDate     = "endDate"
	fieldDescription = "description"
	fieldLocation    = "location"
	fieldDateTime    = "dateTime"
	fieldDayNumber   = "dayNumber"
	fieldImageURL    = "imageUrl"
	fieldAmount      = "amount"
	fieldCategory    = "category"
	fieldNote        = "note"
	fieldTimestamp   = "timestamp"
	fieldTripID      = "tripId"
	fieldTotalBudget = "totalBudget"
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
)

func tripDocData(t *tripstore.Trip) map[string]any {
	return map[string]any{
		fieldTitle:       t.Title,
		fieldDestination: t.Destination,
		fieldStartDate:   t.StartDate,
		fieldEndDate:     t.EndDate,
		fieldCreatedAt:   t.CreatedAt,
		fieldUpdatedAt:   t.UpdatedAt,
	}
}

func activityDocData(a *tripstore.Activity) map[string]any {
	return map[string]any{
		fieldTitle:       a.Title,
		fieldDescription: a.Description,
		fieldLocation:    a.Location,
		fieldDateTime:    a.DateTime,
		fieldDayNumber:   a.DayNumber,
		fieldImageURL:    a.ImageURL,
		fieldCreatedAt:   a.CreatedAt,
		fieldUpdatedAt:   a.UpdatedAt,
	}
}

func expenseDocData(e *tripstore.Expense) map[string]any {
	return map[string]any{
		fieldTitle:     e.Title,
		fieldAmount:    e.Amount,
		fieldCategory:  e.Category,
		fieldNote:      e.Note,
		fieldTimestamp: e.Timestamp,
		fieldTripID:    e.TripID,
		fieldCreatedAt: e.CreatedAt,
		fieldUpdatedAt: e.UpdatedAt,
	}
}

// applyTripDoc overwrites the trip's content fields from the document.
func applyTripDoc(t *tripstore.Trip, doc Document) {
	t.Title = docString(doc.Data, fieldTitle)
	t.Destination = docString(doc.Data, fieldDestination)
	t.StartDate = docInt64(doc.Data, fieldStartDate)
	t.EndDate = docInt64(doc.Data, fieldEndDate)
	if v := docInt64(doc.Data, fieldCreatedAt); v != 0 {
		t.CreatedAt = v
	}
	if v := docInt64(doc.Data, fieldUpdatedAt); v != 0 {
		t.UpdatedAt = v
	}
	t.RemoteID = doc.ID
	t.Synced = true
}

// applyActivityDoc overwrites the activity's content fields from the document.
func applyActivityDoc(a *tripstore.Activity, doc Document) {
	a.Title = docString(doc.Data, fieldTitle)
	a.Description = docString(doc.Data, fieldDescription)
	a.Location = docString(doc.Data, fieldLocation)
	a.DateTime = docInt64(doc.Data, fieldDateTime)
	a.DayNumber = int(docInt64(doc.Data, fieldDayNumber))
	a.ImageURL = docString(doc.Data, fieldImageURL)
	if v := docInt64(doc.Data, fieldCreatedAt); v != 0 {
		a.CreatedAt = v
	}
	if v := docInt64(doc.Data, fieldUpdatedAt); v != 0 {
		a.UpdatedAt = v
	}
	a.RemoteID = doc.ID
	a.Synced = true
}

// applyExpenseDoc overwrites the expense's content fields from the document.
func applyExpenseDoc(e *tripstore.Expense, doc Document) {
	e.Title = docString(doc.Data, fieldTitle)
	e.Amount = docFloat64(doc.Data, fieldAmount)
	e.Category = docString(doc.Data, fieldCategory)
	e.Note = docString(doc.Data, fieldNote)
	e.Timestamp = docInt64(doc.Data, fieldTimestamp)
	e.RemoteID = doc.ID
	e.Synced = true
}

// Documents cross JSON transports, so numeric fields may arrive as float64,
// json.Number or native ints depending on the RemoteStore implementation.

func docString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func docInt64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func docFloat64(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
