package agents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"apogee/internal/jobqueue"
	"apogee/internal/media"
	"apogee/internal/services"
	"apogee/internal/store"
	"apogee/internal/testsupport"
)

// fakeCompleter returns queued responses in order, or a fixed error.
type fakeCompleter struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, userPrompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no canned response")
	}
	response := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return response, nil
}

func newTestAgents(t *testing.T, completer *fakeCompleter) (*Agents, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return New(st, completer, cfg, nil), st
}

func seedChannel(t *testing.T, st *store.Store) *store.Channel {
	t.Helper()
	channel, err := st.EnsureChannel(context.Background(), "deep-dives", "science explainers")
	if err != nil {
		t.Fatalf("ensure channel: %v", err)
	}
	return channel
}

func mustJSON(t *testing.T, value any) string {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestMineTopicsInsertsPendingTopics(t *testing.T) {
	completer := &fakeCompleter{responses: []string{mustJSON(t, map[string]any{
		"topics": []map[string]string{
			{"title": "Why icebergs flip without warning", "rationale": "dramatic physics"},
			{"title": "How deep sea fish survive the pressure", "rationale": "extreme biology"},
		},
	})}}
	agents, st := newTestAgents(t, completer)
	channel := seedChannel(t, st)
	ctx := context.Background()

	result, err := agents.MineTopics(ctx, MineTopicsPayload{ChannelID: channel.ID})
	if err != nil {
		t.Fatalf("mine topics: %v", err)
	}
	if len(result.Topics) != 2 {
		t.Fatalf("expected 2 accepted topics, got %d", len(result.Topics))
	}

	topics, err := st.ListTopics(ctx, channel.ID, media.TopicPending)
	if err != nil {
		t.Fatalf("list topics: %v", err)
	}
	if len(topics) != 2 {
		t.Fatalf("expected 2 pending topics, got %d", len(topics))
	}

	count, err := st.AgentRunCount(ctx, "topic_miner")
	if err != nil {
		t.Fatalf("run count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one miner audit record, got %d", count)
	}
}

func TestMineTopicsSkipsNearDuplicates(t *testing.T) {
	completer := &fakeCompleter{responses: []string{mustJSON(t, map[string]any{
		"topics": []map[string]string{
			{"title": "Why icebergs flip without warning"},
			{"title": "How octopuses edit their own genes"},
		},
	})}}
	agents, st := newTestAgents(t, completer)
	channel := seedChannel(t, st)
	ctx := context.Background()

	// An already-published near-identical title should shadow the first
	// candidate.
	existing := &media.Topic{ChannelID: channel.ID, Title: "Why icebergs flip without any warning"}
	if err := st.InsertTopic(ctx, existing); err != nil {
		t.Fatalf("insert topic: %v", err)
	}
	if err := st.SetTopicStatus(ctx, existing.ID, media.TopicApproved); err != nil {
		t.Fatalf("approve topic: %v", err)
	}

	result, err := agents.MineTopics(ctx, MineTopicsPayload{ChannelID: channel.ID})
	if err != nil {
		t.Fatalf("mine topics: %v", err)
	}
	if len(result.Topics) != 1 {
		t.Fatalf("expected 1 accepted topic, got %d", len(result.Topics))
	}
	if result.Skipped != 1 {
		t.Fatalf("expected 1 skipped duplicate, got %d", result.Skipped)
	}
	if result.Topics[0].Title != "How octopuses edit their own genes" {
		t.Fatalf("wrong topic survived: %s", result.Topics[0].Title)
	}
}

func TestMineTopicsUnknownChannel(t *testing.T) {
	agents, _ := newTestAgents(t, &fakeCompleter{})
	_, err := agents.MineTopics(context.Background(), MineTopicsPayload{ChannelID: "missing"})
	if !errors.Is(err, services.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

func seedApprovedTopic(t *testing.T, st *store.Store, channelID string) *media.Topic {
	t.Helper()
	ctx := context.Background()
	topic := &media.Topic{ChannelID: channelID, Title: "Why icebergs flip without warning"}
	if err := st.InsertTopic(ctx, topic); err != nil {
		t.Fatalf("insert topic: %v", err)
	}
	if err := st.SetTopicStatus(ctx, topic.ID, media.TopicApproved); err != nil {
		t.Fatalf("approve topic: %v", err)
	}
	return topic
}

func TestResearchTopicCreatesDraftAndClaims(t *testing.T) {
	completer := &fakeCompleter{responses: []string{mustJSON(t, map[string]any{
		"claims": []map[string]any{
			{"claim_text": "Ninety percent of an iceberg sits below the waterline.", "source_url": "https://example.org/icebergs", "confidence": 0.9},
			{"claim_text": "Melting redistributes an iceberg's mass.", "confidence": 0.6},
		},
	})}}
	agents, st := newTestAgents(t, completer)
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)
	ctx := context.Background()

	result, err := agents.ResearchTopic(ctx, ResearchTopicPayload{TopicID: topic.ID})
	if err != nil {
		t.Fatalf("research topic: %v", err)
	}
	if result.ClaimCount != 2 {
		t.Fatalf("expected 2 claims, got %d", result.ClaimCount)
	}

	video, err := st.VideoByID(ctx, result.VideoID)
	if err != nil {
		t.Fatalf("video by id: %v", err)
	}
	if video == nil || video.Status != media.VideoDraft {
		t.Fatalf("expected draft video, got %+v", video)
	}
	claims, err := st.ClaimsForVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("claims for video: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 stored claims, got %d", len(claims))
	}
}

func TestResearchTopicRejectsEmptyClaims(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`{"claims": []}`}}
	agents, st := newTestAgents(t, completer)
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)

	_, err := agents.ResearchTopic(context.Background(), ResearchTopicPayload{TopicID: topic.ID})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func seedVideoWithClaims(t *testing.T, st *store.Store, topicID string, claims []media.Claim) *media.Video {
	t.Helper()
	ctx := context.Background()
	video, err := st.EnsureDraftVideo(ctx, topicID)
	if err != nil {
		t.Fatalf("ensure draft video: %v", err)
	}
	if err := st.ReplaceClaims(ctx, video.ID, claims); err != nil {
		t.Fatalf("replace claims: %v", err)
	}
	return video
}

func scriptJSON(t *testing.T) string {
	t.Helper()
	return mustJSON(t, media.Script{
		Hook: "Why do icebergs flip?",
		Beats: []media.ScriptBeat{
			{Fact: "Ninety percent of an iceberg sits below water.", Analogy: "Like an ice cube in a glass."},
			{Fact: "Melting shifts the center of mass.", Analogy: "Like a seesaw losing a rider."},
			{Fact: "A flip releases enormous energy.", Analogy: "Like a belly flop from a diving board."},
		},
		Payoff: "The ocean quietly rebalances giants every day.",
	})
}

func TestWriteScriptSavesValidScript(t *testing.T) {
	completer := &fakeCompleter{responses: []string{scriptJSON(t)}}
	agents, st := newTestAgents(t, completer)
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)
	video := seedVideoWithClaims(t, st, topic.ID, []media.Claim{
		{Text: "Ninety percent of an iceberg sits below water.", SourceURL: "https://example.org", Confidence: 0.9},
	})
	ctx := context.Background()

	result, err := agents.WriteScript(ctx, WriteScriptPayload{VideoID: video.ID, Attempt: 1})
	if err != nil {
		t.Fatalf("write script: %v", err)
	}
	if result.Attempt != 1 {
		t.Fatalf("expected attempt 1, got %d", result.Attempt)
	}

	saved, err := st.ScriptForVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("script for video: %v", err)
	}
	if saved == nil || saved.Hook != "Why do icebergs flip?" {
		t.Fatalf("script not persisted: %+v", saved)
	}
}

func TestWriteScriptFeedsIssuesBack(t *testing.T) {
	completer := &fakeCompleter{responses: []string{scriptJSON(t)}}
	agents, st := newTestAgents(t, completer)
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)
	video := seedVideoWithClaims(t, st, topic.ID, []media.Claim{
		{Text: "Melting shifts the center of mass.", Confidence: 0.5},
	})

	_, err := agents.WriteScript(context.Background(), WriteScriptPayload{
		VideoID: video.ID,
		Attempt: 2,
		Issues:  []string{"claim without source: \"Melting shifts the center of mass.\""},
	})
	if err != nil {
		t.Fatalf("write script: %v", err)
	}
	if len(completer.prompts) != 1 {
		t.Fatalf("expected one llm call, got %d", len(completer.prompts))
	}
	if !strings.Contains(completer.prompts[0], "previous draft was rejected") {
		t.Fatal("expected reviewer feedback in the prompt")
	}
}

func TestWriteScriptRejectsInvalidScript(t *testing.T) {
	completer := &fakeCompleter{responses: []string{`{"hook": "", "beats": [], "payoff": ""}`}}
	agents, st := newTestAgents(t, completer)
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)
	video := seedVideoWithClaims(t, st, topic.ID, []media.Claim{
		{Text: "A fact.", Confidence: 0.8},
	})

	_, err := agents.WriteScript(context.Background(), WriteScriptPayload{VideoID: video.ID})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCheckScriptApprovesCleanClaims(t *testing.T) {
	agents, st := newTestAgents(t, &fakeCompleter{})
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)
	video := seedVideoWithClaims(t, st, topic.ID, []media.Claim{
		{Text: "Ninety percent of an iceberg sits below water.", SourceURL: "https://example.org/a", Confidence: 0.9},
		{Text: "Melting shifts the center of mass.", SourceURL: "https://example.org/b", Confidence: 0.85},
	})
	ctx := context.Background()

	result, err := agents.CheckScript(ctx, CheckScriptPayload{VideoID: video.ID})
	if err != nil {
		t.Fatalf("check script: %v", err)
	}
	if !result.Approved {
		t.Fatalf("expected approval, got risk %v issues %v", result.RiskScore, result.Issues)
	}
	if result.RiskScore != 0 {
		t.Fatalf("expected zero risk, got %v", result.RiskScore)
	}

	updated, err := st.VideoByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("video by id: %v", err)
	}
	if updated.Status != media.VideoScripted {
		t.Fatalf("expected scripted status, got %s", updated.Status)
	}
}

func TestCheckScriptRejectsRiskyClaims(t *testing.T) {
	agents, st := newTestAgents(t, &fakeCompleter{})
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)
	video := seedVideoWithClaims(t, st, topic.ID, []media.Claim{
		{Text: "First unsourced fact.", Confidence: 0.9},
		{Text: "Second unsourced fact.", Confidence: 0.9},
		{Text: "Third unsourced fact.", Confidence: 0.9},
		{Text: "Fourth unsourced fact.", Confidence: 0.9},
	})
	ctx := context.Background()

	result, err := agents.CheckScript(ctx, CheckScriptPayload{VideoID: video.ID})
	if err != nil {
		t.Fatalf("check script: %v", err)
	}
	if result.Approved {
		t.Fatalf("expected rejection at risk %v", result.RiskScore)
	}
	if result.RiskScore != 0.8 {
		t.Fatalf("expected risk 0.8, got %v", result.RiskScore)
	}

	// Rejection leaves the video in draft for another attempt.
	updated, err := st.VideoByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("video by id: %v", err)
	}
	if updated.Status != media.VideoDraft {
		t.Fatalf("expected draft status, got %s", updated.Status)
	}
}

func TestCheckScriptSoftensAbsoluteLanguage(t *testing.T) {
	agents, st := newTestAgents(t, &fakeCompleter{})
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)
	video := seedVideoWithClaims(t, st, topic.ID, []media.Claim{
		// Low confidence, so language is audited and softened.
		{Text: "Icebergs always flip in spring.", SourceURL: "https://example.org", Confidence: 0.5},
		// High confidence is exempt from the language audit.
		{Text: "The ocean never freezes at depth.", SourceURL: "https://example.org", Confidence: 0.95},
	})
	ctx := context.Background()

	result, err := agents.CheckScript(ctx, CheckScriptPayload{VideoID: video.ID})
	if err != nil {
		t.Fatalf("check script: %v", err)
	}
	if result.RiskScore != 0.15 {
		t.Fatalf("expected risk 0.15, got %v", result.RiskScore)
	}

	records, err := st.ClaimRecordsForVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("claim records: %v", err)
	}
	var softened, untouched bool
	for _, record := range records {
		if record.Text == "Icebergs in most cases flip in spring." {
			softened = true
		}
		if record.Text == "The ocean never freezes at depth." {
			untouched = true
		}
	}
	if !softened {
		t.Fatalf("expected softened claim text, got %+v", records)
	}
	if !untouched {
		t.Fatalf("expected high-confidence claim untouched, got %+v", records)
	}
}

func TestCheckScriptRequiresClaims(t *testing.T) {
	agents, st := newTestAgents(t, &fakeCompleter{})
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)
	ctx := context.Background()
	video, err := st.EnsureDraftVideo(ctx, topic.ID)
	if err != nil {
		t.Fatalf("ensure draft video: %v", err)
	}

	_, err = agents.CheckScript(ctx, CheckScriptPayload{VideoID: video.ID})
	if !errors.Is(err, services.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
}

// recordingRegistrar captures job bindings the way an executor would.
type recordingRegistrar struct {
	bound map[string]jobqueue.JobFunc
}

func (r *recordingRegistrar) Register(name string, fn jobqueue.JobFunc) {
	if r.bound == nil {
		r.bound = make(map[string]jobqueue.JobFunc)
	}
	r.bound[name] = fn
}

func TestRegisterBindsEveryJob(t *testing.T) {
	agents, st := newTestAgents(t, &fakeCompleter{err: errors.New("offline")})
	reg := &recordingRegistrar{}
	agents.Register(reg)

	for _, name := range []string{JobMineTopics, JobResearchTopic, JobWriteScript, JobCheckScript} {
		if reg.bound[name] == nil {
			t.Fatalf("job %s not registered", name)
		}
	}
	if len(reg.bound) != 4 {
		t.Fatalf("expected 4 registered jobs, got %d", len(reg.bound))
	}

	// bound functions decode their payloads and run the real agent
	channel := seedChannel(t, st)
	topic := seedApprovedTopic(t, st, channel.ID)
	video, err := st.EnsureDraftVideo(context.Background(), topic.ID)
	if err != nil {
		t.Fatalf("ensure draft video: %v", err)
	}
	payload, _ := json.Marshal(CheckScriptPayload{VideoID: video.ID})
	if _, err := reg.bound[JobCheckScript](context.Background(), payload); !errors.Is(err, services.ErrInvariant) {
		t.Fatalf("expected ErrInvariant from claimless video, got %v", err)
	}
	if _, err := reg.bound[JobWriteScript](context.Background(), json.RawMessage(`{not json`)); err == nil {
		t.Fatal("expected decode error for malformed payload")
	}
}
