// Package fallback answers security questions locally when the remote model is unavailable.
package fallback

import (
	"strings"
	"unicode"
)

// DefaultAnswer is returned when no rule matches.
const DefaultAnswer = "I can't reach the tutoring service right now, but here is a general tip: " +
	"keep your software updated, use a password manager with unique passwords, enable " +
	"multi-factor authentication, and think twice before clicking links or opening attachments " +
	"you were not expecting. Ask me again in a moment for a more detailed answer."

// A keyword is one or more words matched against consecutive words of the
// question. A trailing "*" lets the last word match as a prefix.
type rule struct {
	keywords []string
	answer   string
}

// rules are checked in order and the first match wins.
var rules = []rule{
	{
		keywords: []string{"phish*"},
		answer: "Phishing is a scam where attackers pose as someone you trust to get you to reveal " +
			"credentials or run malware. Check the sender's real address, hover over links before " +
			"clicking, and never enter passwords on a page you reached from an unexpected message.",
	},
	{
		keywords: []string{"password*", "passphrase*"},
		answer: "Use a long, unique passphrase for every account and keep them in a password manager. " +
			"Never reuse a password, and change it right away if a service you use reports a breach.",
	},
	{
		keywords: []string{"malware", "ransomware", "virus*", "trojan*", "spyware"},
		answer: "Malware is software built to damage or spy on a system. Keep your operating system and " +
			"antivirus updated, only install software from trusted sources, and keep offline backups " +
			"so ransomware cannot hold your data hostage.",
	},
	{
		keywords: []string{"social engineer*", "pretext*", "impersonat*"},
		answer: "Social engineering manipulates people rather than systems. Be suspicious of urgency, " +
			"requests for secrecy, and unusual requests from authority figures. Verify through a " +
			"separate channel before acting.",
	},
	{
		keywords: []string{"mfa", "2fa", "two factor", "multi factor", "multifactor"},
		answer: "Multi-factor authentication adds a second proof of identity, such as an authenticator " +
			"app code or a hardware key, on top of your password. Prefer app or hardware based factors " +
			"over SMS, and never share a one-time code with anyone.",
	},
	{
		keywords: []string{"encrypt*", "cipher*"},
		answer: "Encryption turns readable data into ciphertext that only holders of the right key can " +
			"read. Enable full-disk encryption on your devices and make sure websites use HTTPS before " +
			"entering sensitive information.",
	},
	{
		keywords: []string{"firewall*"},
		answer: "A firewall filters network traffic according to rules, blocking connections you did not " +
			"allow. Keep the built-in firewall on your computer enabled and only open ports for services " +
			"you actually need.",
	},
	{
		keywords: []string{"vpn", "vpns", "virtual private network*"},
		answer: "A VPN encrypts your traffic between your device and the VPN server, which protects you on " +
			"untrusted networks such as public Wi-Fi. It does not make you anonymous, so choose a " +
			"reputable provider.",
	},
	{
		keywords: []string{"sql injection*", "sqli"},
		answer: "SQL injection happens when user input is pasted into a database query. Use parameterized " +
			"queries or prepared statements, validate input, and give the application's database " +
			"account only the permissions it needs.",
	},
	{
		keywords: []string{"xss", "cross site scripting"},
		answer: "Cross-site scripting lets an attacker run script in other users' browsers through a " +
			"vulnerable page. Encode output for its context, validate input, and deploy a Content " +
			"Security Policy.",
	},
	{
		keywords: []string{"update*", "updating", "patch*"},
		answer: "Updates fix known vulnerabilities that attackers actively exploit. Turn on automatic " +
			"updates for your operating system, browser and apps, and restart when prompted so patches " +
			"take effect.",
	},
}

// Respond returns a canned answer for userText. It is deterministic and never fails.
func Respond(userText string) string {
	words := tokenize(userText)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if containsPhrase(words, strings.Fields(kw)) {
				return r.answer
			}
		}
	}
	return DefaultAnswer
}

// tokenize lower-cases text and splits it into runs of letters and digits,
// so "Two-Factor?" becomes ["two", "factor"].
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		if phraseAt(words[i:], phrase) {
			return true
		}
	}
	return false
}

func phraseAt(words, phrase []string) bool {
	for j, want := range phrase {
		if stem, ok := strings.CutSuffix(want, "*"); ok {
			if !strings.HasPrefix(words[j], stem) {
				return false
			}
			continue
		}
		if words[j] != want {
			return false
		}
	}
	return true
}
