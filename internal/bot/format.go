package bot

import (
	"fmt"
	"strings"

	"submit_bot/internal/flow"
	"submit_bot/internal/intake"
	"submit_bot/internal/model"
	"submit_bot/internal/record"
)

const (
	labelMedia      = "📷 Media"
	labelDocument   = "📄 Document"
	labelSpoilerYes = "Yes"
	labelSpoilerNo  = "No"
)

// FormatReply renders the text shown to a contributor for r.
func FormatReply(r intake.Reply) string {
	switch r.Notice {
	case flow.NoticeChooseMode:
		return fmt.Sprintf("What are you submitting?\n%s: photos, videos, GIFs or audio\n%s: files", labelMedia, labelDocument)
	case flow.NoticeSendDocuments:
		return fmt.Sprintf("Send your documents (up to %d). Use /done_doc when finished.", model.DocumentCap)
	case flow.NoticeSendMedia:
		return fmt.Sprintf("Send your photos, videos, GIFs or audio (up to %d). Use /done_media when finished.", r.Mode.MediaCap())
	case flow.NoticeSendMediaOptional:
		return fmt.Sprintf("You can add media too (up to %d). Use /done_media when finished or /skip_media to continue without.", r.Mode.MediaCap())
	case flow.NoticeEnterTags:
		return "Send tags separated by commas or spaces, e.g. #art, #music"
	case flow.NoticeEnterLink:
		return "Send a source link (http or https), or \"none\".\nUse /skip_optional to skip link, title and note."
	case flow.NoticeEnterTitle:
		return fmt.Sprintf("Send a title (up to %d characters), or \"none\".", flow.MaxTitleLength)
	case flow.NoticeEnterNote:
		return fmt.Sprintf("Send a note (up to %d characters), or \"none\".", flow.MaxNoteLength)
	case flow.NoticeChooseSpoiler:
		return "Mark this post as a spoiler? Yes / No"
	case flow.NoticePublishing:
		return "Publishing your submission..."
	case flow.NoticeCancelled:
		return "Submission cancelled."

	case flow.NoticeInvalidMode:
		return fmt.Sprintf("Please choose %s or %s.", labelMedia, labelDocument)
	case flow.NoticeNeedDocument:
		return "Send at least one document before /done_doc."
	case flow.NoticeNeedMedia:
		return "Send at least one media item before /done_media."
	case flow.NoticeSkipMediaRefused:
		return "Media is required for this submission and cannot be skipped."
	case flow.NoticeInvalidTags:
		return "No valid tags found. Send at least one tag."
	case flow.NoticeInvalidLink:
		return "That is not a valid http(s) link. Send a link or \"none\"."
	case flow.NoticeInvalidSpoiler:
		return "Please answer Yes or No."
	case flow.NoticeExpectAttachment:
		return fmt.Sprintf("Please send a file, or use /%s to continue.", finishCommand(r.State))
	case flow.NoticeWrongAttachment:
		return "Only documents are accepted right now. Use /done_doc to continue to media."
	case flow.NoticeAtCapacity:
		return fmt.Sprintf("Limit reached. Use /%s to continue.", finishCommand(r.State))

	case flow.NoticeMediaAdded:
		return fmt.Sprintf("Media received (%d/%d).", r.MediaCount, r.Mode.MediaCap())
	case flow.NoticeDocumentAdded:
		return fmt.Sprintf("Document received (%d/%d).", r.DocumentCount, model.DocumentCap)
	case flow.NoticeInvalidType:
		if r.Reason == "" {
			return "This file type is not accepted."
		}
		return "This file type is not accepted: " + r.Reason
	case flow.NoticeSessionExpired:
		return "You have no active submission, it may have expired. Use /submit to start."
	case flow.NoticeInternalError:
		return "Something went wrong and your submission was discarded. Please start again with /submit."
	case flow.NoticePublished:
		if r.PostLink == "" {
			return "Published!"
		}
		return "Published! " + r.PostLink
	case flow.NoticePublishFailed:
		return "Publishing failed. Please try again later with /submit."
	case flow.NoticeBlacklisted:
		return "You are not allowed to submit."
	case flow.NoticeNotAllowed:
		return "Access denied."
	}
	return "Use /help for a list of commands."
}

func finishCommand(state model.State) string {
	if state == model.StateDoc {
		return "done_doc"
	}
	return "done_media"
}

// FormatOwnerNotification describes a new post for the bot owner.
func FormatOwnerNotification(n record.Notification) string {
	var b strings.Builder
	b.WriteString("New submission published\n\n")
	fmt.Fprintf(&b, "User ID: %d\n", n.Submitter.ID)
	if n.Submitter.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", n.Submitter.Username)
	}
	if n.Submitter.FullName != "" {
		fmt.Fprintf(&b, "Name: %s\n", n.Submitter.FullName)
	}
	if n.PostLink != "" {
		fmt.Fprintf(&b, "Post: %s\n", n.PostLink)
	}
	fmt.Fprintf(&b, "\nBan: /%s %d", cmdBlacklistAdd, n.Submitter.ID)
	return b.String()
}

// FormatBlacklist lists blacklisted users for display.
func FormatBlacklist(entries []model.BlacklistEntry) string {
	if len(entries) == 0 {
		return "The blacklist is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Blacklisted users (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%d", e.UserID)
		if e.Reason != "" {
			fmt.Fprintf(&b, ": %s", e.Reason)
		}
		if !e.AddedAt.IsZero() {
			fmt.Fprintf(&b, " (since %s)", e.AddedAt.Format("2006-01-02 15:04 UTC"))
		}
	}
	return b.String()
}
