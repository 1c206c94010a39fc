// Package driven defines the secondary ports of the aggregation core: the
// survey connector contract, the mailbox capability and the document store
// capability. Adapters implement these; services depend only on the
// interfaces.
package driven
