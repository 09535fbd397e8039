package classifier

import (
	"fmt"
	"time"
)

const promptTemplate = `Analyze the following email content to determine if it is an event announcement. Today's date is %s. Use this for context when resolving relative dates.
Email Subject: "%s"
Email Body: "%s"
If it is an event, extract details and return a single, minified JSON object with keys: "title", "description", "organisingBody", "startDate", "startTime", "endDate", "endTime", "venue", "contact". Use "YYYY-MM-DD" for dates and "HH:MM:SS" for times. Use null for missing values.
If it is NOT an event, return {"is_event": false}.
Return only the JSON object, with no commentary.`

// BuildPrompt embeds subject and body verbatim into the instruction.
func BuildPrompt(subject, body string, today time.Time) string {
	return fmt.Sprintf(promptTemplate, today.Format("January 2, 2006"), subject, body)
}
