package templates

import (
	"fmt"
	"html"
)

// RenderVerdictEmail generates the HTML body for the verdict-ready email
// sent to both debaters when the judge closes a room.
func RenderVerdictEmail(username, motionTitle, winner, reasoning string, scoreA, scoreB int, shareURL string) string {
	safeName := html.EscapeString(username)
	safeMotion := html.EscapeString(motionTitle)
	safeReasoning := html.EscapeString(reasoning)

	linkBlock := ""
	if shareURL != "" {
		linkBlock = fmt.Sprintf(`<p style="text-align:center;margin-top:30px;"><a class="button" href="%s">View the full verdict</a></p>`, html.EscapeString(shareURL))
	}

	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>The verdict is in for the motion:</p>
<p class="motion">&ldquo;%s&rdquo;</p>
<div class="verdict-box">
  <p class="winner">Winner: Side %s</p>
  <p class="scores">Side A: %d &nbsp;&middot;&nbsp; Side B: %d</p>
</div>
<p>%s</p>
%s`, safeName, safeMotion, html.EscapeString(winner), scoreA, scoreB, safeReasoning, linkBlock)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>The verdict is in</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #0a0a0f; }
    .container { max-width: 600px; margin: 0 auto; background-color: #12121f; }
    .header { background: linear-gradient(135deg, #1f6feb 0%%, #6e40c9 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #e5e7eb; line-height: 1.6; font-size: 15px; }
    .motion { font-size: 17px; font-style: italic; text-align: center; color: #fff; }
    .verdict-box { background-color: #1b1b2e; border-radius: 8px; padding: 20px; margin: 20px 0; text-align: center; }
    .winner { font-size: 20px; font-weight: 700; color: #3fb950; margin: 0 0 8px; }
    .scores { color: #9ca3af; margin: 0; }
    .button { display: inline-block; background-color: #1f6feb; color: #fff; padding: 12px 28px; border-radius: 6px; text-decoration: none; font-weight: 600; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(255,255,255,0.1); }
    .footer a { color: #1f6feb; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>The verdict is in</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>&copy; ParleyHQ | <a href="https://www.parleyhq.com">parleyhq.com</a></p>
    </div>
  </div>
</body>
</html>`, body)
}
