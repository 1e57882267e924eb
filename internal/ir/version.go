package ir

// Version is the erpgate release version.
const Version = "0.1.0"
