package ir

// ClientVersion is the Lifeline client version, sent in the upload
// User-Agent and printed by --version.
const ClientVersion = "0.1.0"
