package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormState_Consignment_OutOfRange(t *testing.T) {
	s := NewFormState()

	assert.Equal(t, ConsignmentDetail{}, s.Consignment(0))
	assert.Equal(t, ConsignmentDetail{}, s.Consignment(-1))
	assert.Equal(t, ConsignmentDetail{}, s.Consignment(5))
}

func TestFormState_ActiveConsignments(t *testing.T) {
	s := NewFormState()
	s.ConsignmentDetails = []ConsignmentDetail{
		{MaterialDescription: "one"},
		{MaterialDescription: "two"},
		{MaterialDescription: "three"},
	}

	tests := []struct {
		name     string
		expected int
		want     int
	}{
		{"fewer than stored", 1, 1},
		{"equal to stored", 3, 3},
		{"more than stored", 5, 3},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.ExpectedConsignments = tt.expected
			assert.Len(t, s.ActiveConsignments(), tt.want)
		})
	}
}

func TestFormState_Clone(t *testing.T) {
	s := NewFormState()
	s.ConsignmentDetails = []ConsignmentDetail{NewConsignmentDetail([]string{"Zinc"}, sequentialIDs())}
	s.Attachments = []Attachment{{Name: "lab.pdf"}}

	clone := s.Clone()
	clone.ConsignmentDetails[0].AnalyticalRows[0].Maximum = "1"
	clone.Attachments[0].Name = "other.pdf"

	require.Len(t, s.ConsignmentDetails, 1)
	assert.Empty(t, s.ConsignmentDetails[0].AnalyticalRows[0].Maximum)
	assert.Equal(t, "lab.pdf", s.Attachments[0].Name)
}

func TestClampConsignments(t *testing.T) {
	assert.Equal(t, 1, ClampConsignments(-3))
	assert.Equal(t, 1, ClampConsignments(0))
	assert.Equal(t, 4, ClampConsignments(4))
}
