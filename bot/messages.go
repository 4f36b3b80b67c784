package bot

const (
	msgHelp = "I relay user reports from your groups to a review channel.\n\n" +
		"Owners:\n" +
		"/setup - configure the review channel and reviewers\n" +
		"/status - show your configuration and linked groups\n" +
		"/deleteconfig - delete your configuration\n\n" +
		"Reviewers, inside a group:\n" +
		"/link - send reports from this group to your review channel\n" +
		"/unlink - stop sending reports from this group\n\n" +
		"Everyone, inside a linked group:\n" +
		"/report - report a user to the reviewers\n\n" +
		"/cancel - abort the current action"
	msgGroupHelp = "Use /report to report a user to the reviewers of this group. " +
		"Reviewers can manage the group with /link and /unlink."
	msgUnknownInput           = "I did not get that. Send /help to see what I can do."
	msgInternalError          = "Something went wrong on my side. Please try again later."
	msgStaleControl           = "This button is no longer active. Please start over."
	msgCancelled              = "Cancelled. Send /help to see what I can do."
	msgPendingReportDiscarded = "Your pending report has been discarded."
	msgNothingToCancel        = "There is nothing to cancel."
	msgBusy                   = "You are in the middle of another action. Finish it or send /cancel first."

	msgSetupPrivateOnly      = "Please run /setup in a private chat with me."
	msgSetupDenied           = "Only reviewers of your review channel can replace this configuration."
	msgSetupOverwritePrompt  = "You already have a configuration.\n\n%s\n\nDo you want to replace it? Your linked groups will be unlinked."
	msgSetupAnswerYesNo      = "Please answer yes or no."
	msgSetupKept             = "Your configuration was left unchanged. Send /help to see what I can do."
	msgSetupDestinationAsk   = "Send me the review channel where reports should go: its id (like -1001234567890), its @username or a link to any message in it."
	msgSetupDestinationBad   = "I could not recognize a channel in that. Send an id like -1001234567890, an @username or a message link like https://t.me/c/1234567890/10."
	msgSetupDestinationTaken = "This channel is already used by another owner. Please send a different one."
	msgSetupReviewersAsk     = "Now send the numeric user ids of additional reviewers separated by commas, or \"none\". You are always a reviewer yourself."
	msgSetupReviewersBad     = "These are not valid user ids: %s. Send numeric ids separated by commas, or \"none\"."
	msgSetupDone             = "Setup complete.\n\n%s\n\nAdd me to your groups and run /link there to start receiving reports."
	msgSetupFailed           = "I could not save your configuration. Please try /setup again later."

	msgDeletePrivateOnly = "Please run /deleteconfig in a private chat with me."
	msgDeletePrompt      = "Delete your configuration? %d linked group(s) will be unlinked."
	msgDeleteDone        = "Your configuration has been deleted."
	msgDeleteKept        = "Nothing was deleted."
	msgDeleteFailed      = "I could not delete your configuration. Please try again later."

	msgNotConfigured = "You have no configuration yet. Run /setup to create one."
	msgStatusHeader  = "Your configuration:\n\n%s"
	msgStatusGroups  = "\n\nLinked groups:\n%s"
	msgStatusNoGroup = "\n\nNo groups are linked yet. Run /link inside a group."

	msgLinkGroupOnly     = "Run /link inside the group you want to link."
	msgLinkDenied        = "Only reviewers can link groups. Owners configure the bot with /setup in a private chat."
	msgLinkDone          = "This group is now linked to a review channel. Members can report users with /report."
	msgLinkDonePrivate   = "Group \"%s\" is now linked to %s."
	msgLinkFailed        = "I could not link this group. Please try again later."
	msgUnlinkGroupOnly   = "Run /unlink inside the group you want to unlink."
	msgUnlinkDenied      = "Only reviewers of the linked review channel can unlink this group."
	msgUnlinkNotLinked   = "This group is not linked to any review channel."
	msgUnlinkDone        = "This group is no longer linked. Reports are disabled here."
	msgUnlinkDonePrivate = "Group \"%s\" has been unlinked from %s."
	msgUnlinkFailed      = "I could not unlink this group. Please try again later."

	msgReportGroupOnly     = "Use /report inside the group where the incident happened."
	msgReportNotLinked     = "This group is not linked to a review channel yet. A reviewer can set it up with /link."
	msgReportConfirm       = "You are about to report a user from \"%s\". Press the button to start."
	msgReportConfirmButton = "Start report"
	msgReportOpenPrivate   = "To report a user, open a private chat with me and press Start."
	msgReportOpenButton    = "Open private chat"
	msgReportStale         = "This report request is no longer valid. Start over with /report in the group."
	msgReportTargetAsk     = "Who are you reporting? Send their @username, name or id."
	msgReportTargetBad     = "Please send the @username, name or id of the user as text."
	msgReportDescAsk       = "Describe what happened."
	msgReportDescBad       = "Please describe what happened as text."
	msgReportEvidenceAsk   = "Send a screenshot as evidence."
	msgReportEvidenceBad   = "Evidence must be an image. Please send a screenshot."
	msgReportDelivered     = "Thank you, your report has been delivered to the reviewers."
	msgReportFailed        = "I could not deliver your report to the reviewers. Please try again later with /report."

	msgReviewButton      = "Take for review"
	msgReviewStale       = "This report control is no longer valid."
	msgReviewDenied      = "Only reviewers of this channel can take reports."
	msgReviewAlready     = "This report is already being handled."
	msgReviewFailed      = "I could not update the report."
	msgReviewDone        = "Marked as under review."
	msgReviewNotifyGroup = "Your report about %s from \"%s\" is now under review."
	msgReviewNotify      = "Your report about %s is now under review."
)
