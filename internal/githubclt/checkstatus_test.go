package githubclt

import (
	"testing"

	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverallCIStatus_optionalFailedChecksAreIgnored(t *testing.T) {
	status := overallCIStatus(
		githubv4.StatusStateError,
		[]*CIJobStatus{
			{
				Name:     "optional_check",
				Status:   CIStatusFailure,
				Required: false,
			},
			{
				Name:     "required_check",
				Status:   CIStatusSuccess,
				Required: true,
			},
		},
	)

	require.Equal(t, CIStatusSuccess, status)
}

func TestOverallCIStatus_optionalPendingChecksAreHonored(t *testing.T) {
	status := overallCIStatus(
		githubv4.StatusStateError,
		[]*CIJobStatus{
			{
				Name:     "optional_check",
				Status:   CIStatusPending,
				Required: false,
			},
			{
				Name:     "required_check",
				Status:   CIStatusSuccess,
				Required: true,
			},
		},
	)

	require.Equal(t, CIStatusPending, status)
}

func TestOverallCIStatus_requiredFailedCheck(t *testing.T) {
	status := overallCIStatus(
		githubv4.StatusStateError,
		[]*CIJobStatus{
			{
				Name:     "optional_check",
				Status:   CIStatusPending,
				Required: false,
			},
			{
				Name:     "required_check",
				Status:   CIStatusFailure,
				Required: true,
			},
			{
				Name:     "required_check1",
				Status:   CIStatusSuccess,
				Required: true,
			},
		},
	)

	require.Equal(t, CIStatusFailure, status)
}

func TestMergeJobStatuses(t *testing.T) {
	jobs, err := mergeJobStatuses(
		[]string{"build", "lint"},
		[]*checkRunNode{
			{Name: "build", Status: githubv4.CheckStatusStateCompleted, Conclusion: githubv4.CheckConclusionStateSuccess},
			{Name: "docs", Status: githubv4.CheckStatusStateInProgress},
		},
		[]*statusContextNode{
			{Context: "ci/legacy", State: githubv4.StatusStateFailure},
		},
	)
	require.NoError(t, err)

	assert.Equal(t,
		[]*CIJobStatus{
			{Name: "build", Status: CIStatusSuccess, Required: true},
			{Name: "lint", Status: CIStatusPending, Required: true},
			{Name: "docs", Status: CIStatusPending},
			{Name: "ci/legacy", Status: CIStatusFailure},
		},
		jobs,
	)

	s := CheckStatus{Jobs: jobs}
	assert.Empty(t, s.Failed())
}

func TestMergeJobStatusesDuplicateRequiredCheck(t *testing.T) {
	_, err := mergeJobStatuses([]string{"build", "build"}, nil, nil)
	assert.Error(t, err)
}
