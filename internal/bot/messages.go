package bot

import (
	"errors"
	"html"

	"recurring-planner/internal/model"
)

// userMessage turns a service error into a chat reply.
func userMessage(err error) string {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return "⚠️ " + escape(verr.Error())
	case errors.Is(err, model.ErrNotFound):
		return "Task not found or already deleted."
	case errors.Is(err, model.ErrMissingSeriesContext):
		return "This task is not part of a series; use “Only this”."
	case errors.Is(err, model.ErrStoreTransient):
		return "⏳ Storage is busy right now. Please try again."
	case errors.Is(err, model.ErrStoreConflict):
		return "⚠️ The change could not be applied and nothing was saved. Please try again."
	}
	return "Something went wrong. Please try again later."
}

func escape(s string) string {
	return html.EscapeString(s)
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /newtask — add a task or a recurring series step by step\n" +
	"• /day [date] — tasks of a day (today by default)\n" +
	"• /week [date] — the week containing the date\n" +
	"• /rename &lt;n&gt; &lt;text&gt; — rename task n of the last list\n" +
	"• /mood &lt;n&gt; &lt;terrible|low|normal|good|great&gt; — rate task n\n" +
	"• /comment &lt;n&gt; &lt;text&gt; — comment on task n\n" +
	"• /delete &lt;n&gt; — delete task n\n" +
	"• /report — today's summary\n" +
	"• /export — download your tasks as an .ics calendar\n" +
	"• /watch, /unwatch — live notifications about changes\n" +
	"• /cancel — abort the current dialog\n\n" +
	"Dates: <code>2025-11-30</code>, <code>30.11.2025</code>, today, tomorrow."

// isServiceError reports whether err carries one of the planner sentinels,
// as opposed to a local parsing error worth showing verbatim.
func isServiceError(err error) bool {
	for _, target := range []error{
		model.ErrValidation, model.ErrNotFound, model.ErrMissingSeriesContext,
		model.ErrStoreTransient, model.ErrStoreConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
