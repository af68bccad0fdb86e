// Package mail sends account emails (address confirmation and password
// reset) over SMTP using gomail.
//
// Each email carries a link built from the configured confirm_url or
// reset_url with the security token appended as the "token" query
// parameter. When mail is disabled, LogSender takes its place.
package mail
