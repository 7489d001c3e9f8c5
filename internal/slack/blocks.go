package slack

import (
	"unicode/utf8"

	"github.com/harun/triagebot/pkg/triage"
	slackapi "github.com/slack-go/slack"
)

// metadataEventType tags messages posted by the forwarder
const metadataEventType = "triage_forward"

// maxSectionText is Slack's limit on a section block's text
const maxSectionText = 3000

const (
	metaForwardID     = "forward_id"
	metaSourceChannel = "source_channel"
	metaSourceTS      = "source_ts"
)

// artifactBlocks renders one mrkdwn section with the acknowledgment button as accessory.
// The section text is cut to maxSectionText; the message's fallback text stays whole.
func artifactBlocks(artifact triage.ForwardedArtifact) []slackapi.Block {
	text := slackapi.NewTextBlockObject(slackapi.MarkdownType, truncateRunes(artifact.Text, maxSectionText), false, false)
	button := slackapi.NewButtonBlockElement(
		artifact.ControlID,
		artifact.Reference.String(),
		slackapi.NewTextBlockObject(slackapi.PlainTextType, artifact.ControlLabel, false, false),
	)
	return []slackapi.Block{
		slackapi.NewSectionBlock(text, nil, slackapi.NewAccessory(button)),
	}
}

func artifactMetadata(artifact triage.ForwardedArtifact) slackapi.SlackMetadata {
	return slackapi.SlackMetadata{
		EventType: metadataEventType,
		EventPayload: map[string]interface{}{
			metaForwardID:     artifact.ID,
			metaSourceChannel: artifact.Reference.Channel,
			metaSourceTS:      artifact.Reference.Timestamp,
		},
	}
}

func referenceFromMetadata(meta slackapi.SlackMetadata) (triage.MessageRef, bool) {
	if meta.EventType != metadataEventType {
		return triage.MessageRef{}, false
	}
	channel, _ := meta.EventPayload[metaSourceChannel].(string)
	ts, _ := meta.EventPayload[metaSourceTS].(string)
	ref := triage.MessageRef{Channel: channel, Timestamp: ts}
	return ref, ref.Valid()
}

// truncateRunes cuts s to at most limit runes, ending with an ellipsis when cut
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
