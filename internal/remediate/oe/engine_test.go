package oe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relay-bss/batchmender/internal/runtimeapi"
)

type fakeOEClient struct {
	info                *runtimeapi.OEServiceInfo
	infoErr             error
	updateErr           error
	triggerErr          error
	enrichment          runtimeapi.Enrichment
	updateCalled        bool
	triggerCalled       bool
	persistedAttachment string
}

func (f *fakeOEClient) GetOEServiceInfo(context.Context, string) (*runtimeapi.OEServiceInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeOEClient) UpdateOEAttachment(_ context.Context, _ string, serialised string) error {
	f.updateCalled = true
	f.persistedAttachment = serialised
	return f.updateErr
}

func (f *fakeOEClient) TriggerOERemediation(context.Context, string, string) error {
	f.triggerCalled = true
	return f.triggerErr
}

func (f *fakeOEClient) ResolveEnrichment(context.Context, string) runtimeapi.Enrichment {
	return f.enrichment
}

func infoWithAttachment(productName, attachmentJSON string) *runtimeapi.OEServiceInfo {
	return &runtimeapi.OEServiceInfo{
		ProductDefinitionName: productName,
		AttachmentContent:     attachmentJSON,
	}
}

// TestOENotImpacted: every mandatory field already present (including an
// alias spelling) leaves the item NOT_IMPACTED with no attachment update
// and no sync trigger.
func TestOENotImpacted(t *testing.T) {
	attachmentJSON := `{"NonCommercialProduct":[{"Voice OE":{"attributes":[
		{"name":"ReservedNumber","value":"12345"},
		{"name":"Resource System Group ID","value":"RSG1"},
		{"name":"NumberStatus","value":"Active"},
		{"name":"PIC Email","value":"pic@example.com"}
	]}}]}`
	fc := &fakeOEClient{info: infoWithAttachment("Residential Voice", attachmentJSON)}
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{})

	assert.Equal(t, "NOT_IMPACTED", res.FinalState)
	assert.True(t, res.Success)
	assert.False(t, fc.updateCalled)
	assert.False(t, fc.triggerCalled)
	require.NotEmpty(t, res.StateHistory)
	assert.Equal(t, res.FinalState, res.StateHistory[len(res.StateHistory)-1])
}

// TestOEPatchDryRun: a Voice service missing ReservedNumber, enrichment
// supplies it, dry_run=true stops after ANALYSE+PATCH with no persist and
// no trigger call.
func TestOEPatchDryRun(t *testing.T) {
	attachmentJSON := `{"NonCommercialProduct":[{"Voice OE":{"attributes":[
		{"name":"ResourceSystemGroupID","value":"RSG1"},
		{"name":"NumberStatus","value":"Active"},
		{"name":"PICEmail","value":"pic@example.com"}
	]}}]}`
	fc := &fakeOEClient{
		info:       infoWithAttachment("Residential Voice", attachmentJSON),
		enrichment: runtimeapi.Enrichment{ReservedNumber: "N1"},
	}
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{DryRun: true})

	assert.Equal(t, "VALIDATED", res.FinalState)
	assert.True(t, res.Success)
	assert.False(t, fc.updateCalled)
	assert.False(t, fc.triggerCalled)
	require.NotEmpty(t, res.StateHistory)
	assert.Equal(t, res.FinalState, res.StateHistory[len(res.StateHistory)-1])

	var analyseStep = res.Steps[len(res.Steps)-1]
	assert.Equal(t, "ANALYSE", analyseStep.Action)
	assert.Contains(t, analyseStep.Message, "ReservedNumber")
}

// TestOEZeroEffectivePatchNotImpacted covers the third NOT_IMPACTED path:
// fields are missing and patch instructions are built, but the attachment
// carries no schema matching the detected service type, so applyPatch
// writes nothing. The automaton must still land on NOT_IMPACTED, not stay
// stuck in ANALYZING.
func TestOEZeroEffectivePatchNotImpacted(t *testing.T) {
	attachmentJSON := `{"NonCommercialProduct":[{"Some Other Schema":{"attributes":[]}}]}`
	fc := &fakeOEClient{
		info:       infoWithAttachment("Residential Voice", attachmentJSON),
		enrichment: runtimeapi.Enrichment{ReservedNumber: "N1", PICEmail: "pic@example.com"},
	}
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{})

	assert.Equal(t, "NOT_IMPACTED", res.FinalState)
	assert.True(t, res.Success)
	assert.False(t, fc.updateCalled)
	assert.False(t, fc.triggerCalled)
	require.NotEmpty(t, res.StateHistory)
	assert.Equal(t, res.FinalState, res.StateHistory[len(res.StateHistory)-1])
}

func TestOEReplacementServiceSkips(t *testing.T) {
	fc := &fakeOEClient{info: &runtimeapi.OEServiceInfo{ReplacementServiceExists: true, AttachmentContent: "{}"}}
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{})
	assert.Equal(t, "SKIPPED", res.FinalState)
	assert.True(t, res.Success)
}

func TestOENoAttachmentContentFails(t *testing.T) {
	fc := &fakeOEClient{info: &runtimeapi.OEServiceInfo{}}
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{})
	assert.Equal(t, "FAILED", res.FinalState)
	assert.Equal(t, "FETCH", res.FailedAt)
}

func TestOEInvalidAttachmentJSONFails(t *testing.T) {
	fc := &fakeOEClient{info: infoWithAttachment("Voice", "not json")}
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{})
	assert.Equal(t, "FAILED", res.FinalState)
	assert.Equal(t, "FETCH", res.FailedAt)
}

func TestOEUnknownServiceTypeFails(t *testing.T) {
	fc := &fakeOEClient{info: infoWithAttachment("Mystery Product", "{}")}
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{})
	assert.Equal(t, "FAILED", res.FinalState)
	assert.Equal(t, "ANALYSE", res.FailedAt)
}

func TestOEEnrichmentInsufficientFails(t *testing.T) {
	attachmentJSON := `{"NonCommercialProduct":[{"Voice OE":{"attributes":[
		{"name":"ResourceSystemGroupID","value":"RSG1"},
		{"name":"NumberStatus","value":"Active"},
		{"name":"PICEmail","value":"pic@example.com"}
	]}}]}`
	fc := &fakeOEClient{info: infoWithAttachment("Voice", attachmentJSON)} // no reserved_number enrichment
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{})
	assert.Equal(t, "FAILED", res.FinalState)
	assert.Equal(t, "ANALYSE", res.FailedAt)
}

// TestOEFullRemediationPersistsAndTriggers exercises PERSIST+TRIGGER_SYNC
// through to REMEDIATED (the non-dry-run counterpart of the dry-run case).
func TestOEFullRemediationPersistsAndTriggers(t *testing.T) {
	attachmentJSON := `{"NonCommercialProduct":[{"Voice OE":{"attributes":[
		{"name":"ResourceSystemGroupID","value":"RSG1"},
		{"name":"NumberStatus","value":"Active"},
		{"name":"PICEmail","value":"pic@example.com"}
	]}}]}`
	fc := &fakeOEClient{
		info:       infoWithAttachment("Residential Voice", attachmentJSON),
		enrichment: runtimeapi.Enrichment{ReservedNumber: "N1"},
	}
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{})

	assert.Equal(t, "REMEDIATED", res.FinalState)
	assert.True(t, res.Success)
	assert.True(t, fc.updateCalled)
	assert.True(t, fc.triggerCalled)
	require.NotEmpty(t, fc.persistedAttachment)
	assert.Contains(t, fc.persistedAttachment, "N1")
}

func TestOEFallbackEmailAppliesWhenEnrichmentEmpty(t *testing.T) {
	attachmentJSON := `{"NonCommercialProduct":[{"Voice OE":{"attributes":[
		{"name":"ReservedNumber","value":"12345"},
		{"name":"ResourceSystemGroupID","value":"RSG1"},
		{"name":"NumberStatus","value":"Active"}
	]}}]}`
	fc := &fakeOEClient{info: infoWithAttachment("Voice", attachmentJSON)} // PICEmail missing, enrichment empty
	e := New(fc)

	res := e.Run(context.Background(), "svc-1", RunOptions{FallbackEmail: "fallback@example.com"})
	assert.Equal(t, "REMEDIATED", res.FinalState)
	assert.Contains(t, fc.persistedAttachment, "fallback@example.com")
}
