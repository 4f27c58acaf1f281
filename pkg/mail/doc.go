// Package mail delivers rendered notifications: the JSON envelope accepted by
// the mail-delivery service, the HTTP and SMTP transports that carry it, the
// ${KEY} placeholder substitution and the embedded HTML template store.
package mail
