package lockwindow

// overlayArt is shown for the configured overlay seconds.
const overlayArt = `
  _     ___   ____ _  __ _____ ____
 | |   / _ \ / ___| |/ /| ____|  _ \
 | |  | | | | |   | ' / |  _| | | | |
 | |__| |_| | |___| . \ | |___| |_| |
 |_____\___/ \____|_|\_\|_____|____/
`
